// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供指标 HTTP 服务器的生命周期管理，支持非阻塞启动与
优雅关闭。

# 概述

Manager 封装 net/http.Server，在 /metrics 暴露 Prometheus 指标，
在 /healthz 提供存活检查。命令行入口在运行期间启动它，退出前调用
Shutdown 排空请求。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Errors/Addr/IsRunning。
  - Config：监听地址、读取请求头超时与优雅关闭超时。
*/
package server
