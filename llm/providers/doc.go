// Copyright 2026 FirmRetr Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是各服务商适配子包（openai、anthropic）的公共基础层：
共享配置、HTTP 状态码到 llm.ErrorKind 的映射，以及模型选择。

# 核心类型

  - BaseProviderConfig — 所有 Provider 共享的基础配置（APIKey、BaseURL、Model、Timeout、MaxConnsPerHost）
  - OpenAIConfig — OpenAI 兼容服务商（含 DeepSeek）的名称与模型别名
  - AnthropicConfig — Messages API 必填的默认输出上限

# 核心函数

  - MapHTTPError — 401/403 → KindAuth，408/504 → KindTimeout，429 → KindRateLimit，5xx/529 → KindServer，其余 4xx → KindBadRequest
  - RedirectModel — 按别名表重定向模型名，例如 deepseek-v3 → deepseek-chat
  - ChooseModel — 按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers
