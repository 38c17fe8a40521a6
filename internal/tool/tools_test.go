package tool

func testContext() *Context {
	return &Context{
		SessionID: "test-session",
		CWD:       "",
	}
}
