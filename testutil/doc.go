/*
Package testutil 提供 agentguard 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup 防止泄漏
  - 断言工具: AssertEventuallyTrue / AssertEventTypes
  - 数据工具: WaitFor / MustJSON

# 子包

  - testutil/mocks: MockExecutor（脚本化内部执行器）与 MockOracle
    （脚本化审核服务），均支持 Builder 模式、错误注入与调用记录
  - testutil/fixtures: 测试配置与样例文本

# 使用示例

	ctx := testutil.TestContext(t)
	inner := mocks.NewMockExecutor().WithEcho()
	res, err := inner.Execute(ctx, "hello")
*/
package testutil
