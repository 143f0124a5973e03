/*
包 server 提供批处理运行期间的运维 HTTP 服务器：非阻塞启动、
优雅关闭，以及 /metrics（Prometheus）与 /healthz 路由。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Errors/Addr/IsRunning。
  - Config：监听地址、读写与空闲超时、优雅关闭超时。

# 主要能力

  - NewHandler 以任意 prometheus.Gatherer 构建路由，测试可传入独立 Registry。
  - Start 绑定端口后在后台 goroutine 中服务；Addr 返回实际监听地址，
    配置 ":0" 时可获得随机端口。
  - Shutdown 可重复调用，在配置的超时内排空请求。
*/
package server
