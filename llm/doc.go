// 版权所有 2026 FirmRetr Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供对大语言模型（预言机）的弹性调用层：统一的请求与响应模型、
封闭的失败分类，以及带有有界指数退避的重试客户端。

# 概述

上层（投票引擎、分类流水线）只通过 [Client.Invoke] 调用模型，
不关心具体服务商的接口差异与错误语义。

# 失败分类

每次失败都会被归入 [ErrorKind] 中的一类，类别决定是否重试：

  - 终止类：KindAuth、KindBadRequest、KindTruncated、KindUnknown
  - 可重试类：KindTimeout、KindRateLimit、KindConnection、KindServer、KindDecode

服务商返回的 HTTP 状态码由 llm/providers.MapHTTPError 映射，
传输层与解码错误由 [Classify] 兜底。

# 重试

[Client] 持有 llm/retry.Policy：默认 4 次尝试，第 n 次失败后等待
1s*2^n + 100ms*n（可选随机抖动，受 MaxDelay 限制）。
输出因长度上限被截断（finish_reason 为 "length"）视为终止错误，不重试。

# 响应解析

  - [ExtractJSON]：严格解析，失败后尝试 ```json 代码块
  - [ParseLabel]：将分类回答解析为标签，可限定允许的标签集合

# 相关子包

  - llm/providers：OpenAI 兼容（含 DeepSeek）与 Anthropic 服务商适配
  - llm/retry：重试策略与退避计算
  - llm/tokenizer：调用前的提示词长度预检
*/
package llm
