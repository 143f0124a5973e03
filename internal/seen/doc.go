// 版权所有 2026 FirmRetr Authors. 版权所有。
// 此源代码的使用由项目许可规范。

/*
包 seen 记录已处理过的条目，批处理据此跳过重复的 app。

# 核心类型

  - Set：Add / Contains 接口，由调用方显式传入流水线。
  - MemorySet：进程内实现，互斥锁保护。
  - RedisSet：基于单个 Redis SET 的实现（SADD / SISMEMBER），
    可在多次运行、多个进程之间共享；可选记录命中/未命中指标。
*/
package seen
