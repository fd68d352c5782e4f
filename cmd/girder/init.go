package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// girderMCPEntry is the MCP server configuration for the girder binary.
var girderMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "girder",
  "args": ["--serve-mcp"]
}`)

// defaultConfigYAML is the girder.yml scaffold written by init. Every
// value shown matches the built-in default.
const defaultConfigYAML = `# girder project settings
ignorePatterns: []
enforcement:
  preExistingAsWarning: true
  placementEnabled: true
  duplicateEnabled: true
  lowConfidenceFloor: 0.80
  circuitBreaker:
    maxRetries: 3
    autoDowngrade: true
  batch:
    inactivitySeconds: 60
tier3:
  enabled: false
  timeoutSeconds: 2
  # commands:
  #   python: ["pyright-langserver", "--stdio"]
`

// runInit writes the girder.yml scaffold and MCP configuration into the
// target project directory.
func runInit(projectRoot string, force bool) error {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	configPath := filepath.Join(abs, "girder.yml")
	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Printf("  skipped girder.yml (exists, use --force to overwrite)\n")
	} else {
		if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o644); err != nil {
			return fmt.Errorf("writing girder.yml: %w", err)
		}
		fmt.Printf("  created girder.yml\n")
	}

	if err := mergeMCPConfig(filepath.Join(abs, ".mcp.json"), force); err != nil {
		return err
	}

	fmt.Println("\nSetup complete. Run 'girder map' to build the graph.")
	return nil
}

// mergeMCPConfig creates or merges the girder entry into .mcp.json.
func mergeMCPConfig(mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["girder"]; exists && !force {
		fmt.Printf("  skipped .mcp.json girder entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["girder"] = girderMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Printf("  %s .mcp.json with girder MCP server\n", action)
	return nil
}
