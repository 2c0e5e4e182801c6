package instructions

import "fmt"

// BuildEnvironmentContext produces the XML-formatted environment context
// injected as a user message at session start.
func BuildEnvironmentContext(cwd, shell, sandboxMode string, networkAccess bool) string {
	if shell == "" {
		shell = "bash"
	}
	network := "restricted"
	if networkAccess {
		network = "enabled"
	}

	return fmt.Sprintf(`<environment_context>
  <cwd>%s</cwd>
  <shell>%s</shell>
  <sandbox_mode>%s</sandbox_mode>
  <network_access>%s</network_access>
</environment_context>`, cwd, shell, sandboxMode, network)
}
