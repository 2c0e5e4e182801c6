// Worker executable for steward.
//
// Starts a Temporal worker serving the session workflows and all
// worker-side activities: model inference, tool execution, MCP lifecycle,
// memory recall, and session setup.
package main

import (
	"log"
	"os"
	"path/filepath"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"steward/internal/activities"
	"steward/internal/approvalpolicy"
	"steward/internal/llm"
	"steward/internal/mcp"
	"steward/internal/memory"
	"steward/internal/models"
	"steward/internal/sandbox"
	"steward/internal/temporalclient"
	"steward/internal/tools"
	"steward/internal/tools/handlers"
	"steward/internal/version"
	"steward/internal/workflow"
)

const TaskQueue = "steward"

func main() {
	hasOpenAI := os.Getenv("OPENAI_API_KEY") != ""
	hasAnthropic := os.Getenv("ANTHROPIC_API_KEY") != ""
	if !hasOpenAI && !hasAnthropic {
		log.Fatal("At least one model provider API key is required: ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}

	opts, err := temporalclient.LoadClientOptions("", "")
	if err != nil {
		log.Fatalf("Failed to load Temporal client options: %v", err)
	}
	c, err := client.Dial(opts)
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	sandboxSvc, err := sandbox.NewService(models.SandboxConfig{Mode: "workspace-write"})
	if err != nil {
		log.Fatalf("Failed to initialize sandbox service: %v", err)
	}

	memoryStore := memory.NewStore(stewardHome())
	mcpStore := mcp.NewStore()

	registry := tools.NewRegistry()
	registry.Register(handlers.NewShellTool(sandboxSvc))
	registry.Register(handlers.NewShellSessionTool(sandboxSvc))
	registry.Register(handlers.NewReadFileTool())
	registry.Register(handlers.NewListDirTool())
	registry.Register(handlers.NewSaveNoteTool(memoryStore))
	registry.Register(handlers.NewMCPHandler(mcpStore))
	router := tools.NewRouter(registry, tools.BuiltinSpecs())
	log.Printf("Registered %d tool handlers", registry.Count())

	w := worker.New(c, TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflow.SessionWorkflow)
	w.RegisterWorkflow(workflow.SessionWorkflowContinued)
	w.RegisterWorkflow(workflow.FocusedTaskWorkflow)

	llmActivities := activities.NewLLMActivities(llm.NewMultiProviderClient())
	w.RegisterActivity(llmActivities.ExecuteLLMCall)
	w.RegisterActivity(llmActivities.ExecuteCompact)

	toolActivities := activities.NewToolActivities(router)
	w.RegisterActivity(toolActivities.ExecuteTool)

	sessionActivities := activities.NewSessionActivities(
		sandboxSvc, approvalpolicy.NewManager(approvalpolicy.NewPolicy()))
	w.RegisterActivity(sessionActivities.LoadSessionSetup)
	w.RegisterActivity(sessionActivities.AllowUnsandboxed)
	w.RegisterActivity(sessionActivities.AppendApprovalRule)
	w.RegisterActivity(sessionActivities.CleanupSession)

	memoryActivities := activities.NewMemoryActivities(memoryStore)
	w.RegisterActivity(memoryActivities.SearchNotes)

	mcpActivities := activities.NewMcpActivities(mcpStore)
	w.RegisterActivity(mcpActivities.InitializeMcpServers)
	w.RegisterActivity(mcpActivities.CleanupMcpServers)

	log.Printf("Worker version: %s", version.Version)
	log.Printf("Starting worker on task queue: %s", TaskQueue)
	if opts.HostPort != "" {
		log.Printf("Temporal server: %s", opts.HostPort)
	}

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker exited: %v", err)
	}
	log.Println("Worker stopped")
}

// stewardHome resolves the directory holding notes, rules, and personal
// instructions.
func stewardHome() string {
	if home := os.Getenv("STEWARD_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".steward"
	}
	return filepath.Join(userHome, ".steward")
}
