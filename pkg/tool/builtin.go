package tool

// Builtin constructs the full builtin tool catalog. Descriptors and their
// JSON schemas are built here, once, at process start.
func Builtin() (*Catalog, error) {
	ctors := []func() (Tool, error){
		newCreateAgentTool,
		newModifyAgentTool,
		newDeleteAgentTool,
		newListAgentsTool,
		newGetAgentDetailsTool,
		newReadFileTool,
		newWriteFileTool,
		newListFilesTool,
		newDeleteFileTool,
		newExecPythonTool,
		newExecShellTool,
		newWebSearchTool,
		newWebFetchTool,
		newContextInfoTool,
	}
	tools := make([]Tool, 0, len(ctors))
	for _, ctor := range ctors {
		t, err := ctor()
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return NewCatalog(tools...)
}
