// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentguard 命令行入口。

# 概述

cmd/agentguard 用 SafeExecutor 包装一个回显执行器，逐行读取标准输入，
把每行作为一次运行送入准入控制、输入输出校验与审计流程，并以 JSON
行输出运行结果。适合在上线前验证护栏配置。

# 子命令

  - check：按配置执行逐行校验，可选 --metrics-addr 暴露 /metrics
  - validate：加载并校验配置文件
  - version：显示构建信息

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
