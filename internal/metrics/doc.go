// 版权所有 2026 FirmRetr Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
预言机调用、投票会话、批处理、已处理集合与数据库五个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，同时实现 llm.Recorder、voting.Recorder
    与 pool.Recorder，由 cmd/firmretr 注入各组件。

# 主要能力

  - 调用指标：按 provider/model/outcome 统计调用次数与耗时，
    按错误类别统计重试次数，按 prompt/completion 统计 Token 用量。
  - 投票指标：按终止状态统计会话数、成功轮次、失败次数与耗时。
  - 批处理指标：按 success/error 统计条目数与处理耗时。
  - 缓存指标：已处理集合的命中与未命中计数。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram。
*/
package metrics
