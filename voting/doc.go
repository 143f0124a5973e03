// Copyright 2026 FirmRetr Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package voting 实现自适应多轮投票：对同一个分类请求反复询问预言机，
直到标签分布足够集中，或者轮次预算耗尽。

# 状态机

	Collecting → Evaluating → {ConsensusReached | RoundBudgetExhausted | AbortedOnFailures}

  - 成功轮次少于 max(InitialRounds, MinSamples) 时只收集，不做判断
  - 之后每轮计算一致性（多数标签占比）与自然对数香农熵，
    一致性 >= ConsistencyThreshold 且熵 <= EntropyThreshold 时提前结束
  - 成功轮次达到 MaxRounds 仍未收敛时返回当前多数标签（RoundBudgetExhausted）
  - 失败总数达到 MaxOracleFailures 时放弃，返回 [ErrNoResult]

失败的调用不消耗轮次，只计入失败计数。同一会话内的轮次严格串行。

# 核心类型

  - [Engine]：驱动一次完整的投票会话
  - [Executor]：执行单轮，取得恰好一张选票或放弃
  - [Session]：单个分类目标的投票状态，只由驱动它的 goroutine 访问
  - [Outcome]：会话的最终结果，生成后不可变
*/
package voting
