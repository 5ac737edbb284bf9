// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 agentguard 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 guardrails、admission、
audit、safety 等上层模块提供统一的错误码契约。

# 核心类型

  - Error / ErrorCode: 结构化错误体系，含 Retryable 与 RetryAfter 提示
  - IsCancelled: 统一识别 context 取消与超时

# 错误码

  - ErrAdmissionDenied / ErrQuotaExceeded: 准入拒绝（请求窗口 / Token 配额）
  - ErrValidationBlocked: 护栏校验拦截
  - ErrOracleUnavailable: 审核服务不可用（由 fail-open 策略消化）
  - ErrMalformedOracleResponse: 审核服务返回无法解析
  - ErrInnerExecution: 内部执行器故障（调用方只看到通用消息）
  - ErrCancelled: 取消，原样传播，不转换为任何其它结果
*/
package types
