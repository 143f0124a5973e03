// 版权所有 2026 FirmRetr Authors. 版权所有。
// 此源代码的使用由项目许可规范。

/*
包 database 持久化投票结果，基于 GORM，支持 postgres、mysql 与纯 Go 的 sqlite。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 与底层 sql.DB，
    负责连接池调优、后台健康检查（同时上报连接数指标）与事务重试。
  - OutcomeRecord：一次投票会话的持久化形式，SessionID 唯一。
  - OutcomeRepository：Save / SaveBatch / ListByApp / CountByLabel。

# 主要能力

  - Open 按驱动名选择方言、应用连接池参数并 AutoMigrate 结果表。
  - WithTransactionRetry 对死锁、序列化失败、SQLite 忙等错误指数退避重试。
  - 重复的 SessionID 写入被忽略，重跑不会产生重复行。
*/
package database
