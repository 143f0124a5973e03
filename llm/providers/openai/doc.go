// Copyright 2026 FirmRetr Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 openai 提供 OpenAI 兼容 Chat Completions 接口的 Provider 适配实现，
基于 sashabaranov/go-openai。DeepSeek 等兼容服务商通过 BaseURL、
ProviderName 与 ModelAliases 复用同一实现。

# 核心结构体

  - Provider — 持有 go-openai 客户端；HTTP 客户端来自 internal/tlsutil，
    不设总超时，单次调用的截止时间由 context 决定

# 错误映射

  - 携带 HTTP 状态码的 APIError / RequestError 交由 providers.MapHTTPError
  - 其余错误（超时、连接、解码）交由 llm.Classify
  - 空 choices 视为 KindDecode，finish_reason "length" 原样上报
*/
package openai
