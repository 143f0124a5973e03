// Copyright 2026 FirmRetr Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 claude 提供 Anthropic Claude 系列模型的 Provider 适配实现，
基于官方 anthropic-sdk-go 调用 Messages API。

# 协议差异

  - system 消息从 messages 数组中提取，单独传递到 system 字段
  - stop_reason 为 max_tokens 时归一化为 "length"，由调用方按截断处理
  - SDK 自带重试被关闭，重试统一由 llm.Client 负责
*/
package claude
