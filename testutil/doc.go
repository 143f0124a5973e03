// Copyright 2026 FirmRetr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 FirmRetr 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext 自动注册 Cleanup 防止泄漏；
    NoSleep 关闭退避与节流等待
  - 断言工具: AssertJSONFileEqual
  - 数据工具: MustJSON / MustParseJSON / WriteJSONFile / ReadJSONFile，
    用于构造 llm_phase1 输入目录与检查输出桶文件

# 子包

  - testutil/mocks: MockProvider（llm.Provider 的模拟实现），
    按顺序消费脚本化的回答与错误

# 使用示例

	provider := mocks.NewMockProvider().WithLabels("0", "0", "1")
	client := llm.NewClient(provider, llm.ClientConfig{Policy: retry.DefaultPolicy()}, llm.WithSleep(testutil.NoSleep))
	res, err := client.Invoke(testutil.TestContext(t), req)
*/
package testutil
