/*
包 classify 实现第二阶段的请求分类流水线。

每个 app 的候选请求位于 <result_root>/<dataset>/<app>/llm_phase1/*.json，
文件按名称顺序合并（同名 key 以后读到的为准），值为字符串 "0" 的记录被跳过。
其余记录逐条交给 [Classifier]（通常是 voting.Engine）做多轮投票，
结果按标签写入 llm_phase2 目录：

  - complete_0_<app>.json：完整请求
  - incomplete_1_<app>.json ~ incomplete_3_<app>.json：三类不完整请求

投票无结果（voting.ErrNoResult）的记录被记录并跳过；其他错误使整个 app 失败，
该 app 不会被标记为已处理，下次运行会重试。

每个 app 完成后更新统计文档中的 llm_phase2_chat_times、llm_phase2_usage_tokens
与 phase2_times。[Batch] 用 internal/pool 的调度器并发处理全部 app，
有失败时写出 error_<dataset>.log。
*/
package classify
