// Copyright (c) FirmRetr Authors.
// Licensed under the MIT License.

/*
Package main 提供 FirmRetr 批处理程序入口。

# 概述

cmd/firmretr 读取 .env 与 YAML 配置（环境变量 FIRMRETR_* 覆盖），
按 llm.provider 选择 DeepSeek / OpenAI / Anthropic 服务商，
组装重试客户端、投票引擎与分类流水线，并发处理数据集中的所有 app。

# 主要能力

  - 子命令：classify（分类数据集）、version、help
  - classify 参数：--config、--env、--dataset、--workers、--app
  - 可选组件：Redis 已处理集合（redis.enabled）、
    结果持久化（database.enabled）、/metrics 运维端口（metrics.addr）、
    OTLP 追踪（telemetry.enabled）
  - SIGINT/SIGTERM 取消正在进行的批处理
  - 有 app 失败时写出错误报告并以非零状态退出
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
