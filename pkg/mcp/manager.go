// Package mcp calls tools on Model Context Protocol servers on behalf of mcp
// skills. Servers are configured by name and started on first use.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/jingkaihe/skillet/pkg/version"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
)

// ServerType is the transport used to reach a server
type ServerType string

const (
	ServerTypeStdio ServerType = "stdio"
	ServerTypeSSE   ServerType = "sse"
)

// ServerConfig describes how to reach one server
type ServerConfig struct {
	ServerType    ServerType        `mapstructure:"server_type" json:"server_type"` // stdio or sse
	Command       string            `mapstructure:"command" json:"command"`         // stdio: command to start the server
	Args          []string          `mapstructure:"args" json:"args"`               // stdio: arguments to pass to the server
	Envs          map[string]string `mapstructure:"envs" json:"envs"`               // stdio: environment variables to set
	BaseURL       string            `mapstructure:"base_url" json:"base_url"`       // sse: base URL of the server
	Headers       map[string]string `mapstructure:"headers" json:"headers"`         // sse: headers to send to the server
	ToolWhiteList []string          `mapstructure:"tool_white_list" json:"tool_white_list"`
}

// ServersConfig maps server names, as referenced by skills, to their config
type ServersConfig struct {
	Servers map[string]ServerConfig `mapstructure:"servers" json:"servers"`
}

// toolClient is the subset of *client.Client the manager drives
type toolClient interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// NewClient creates an unstarted client for config
func NewClient(config ServerConfig) (*client.Client, error) {
	if config.ServerType == "" {
		switch {
		case config.BaseURL != "":
			config.ServerType = ServerTypeSSE
		case config.Command != "":
			config.ServerType = ServerTypeStdio
		default:
			return nil, errors.New("server_type is required")
		}
	}

	switch config.ServerType {
	case ServerTypeStdio:
		if config.Command == "" {
			return nil, errors.New("command is required for stdio server")
		}
		envArgs := make([]string, 0, len(config.Envs))
		for k, v := range config.Envs {
			envArgs = append(envArgs, fmt.Sprintf("%s=%s", k, v))
		}
		return client.NewClient(transport.NewStdio(config.Command, envArgs, config.Args...)), nil
	case ServerTypeSSE:
		if config.BaseURL == "" {
			return nil, errors.New("base_url is required for sse server")
		}
		tp, err := transport.NewSSE(config.BaseURL, transport.WithHeaders(config.Headers))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create sse transport")
		}
		return client.NewClient(tp), nil
	default:
		return nil, errors.Errorf("invalid server type %q", config.ServerType)
	}
}

type server struct {
	client    toolClient
	whiteList []string
	started   bool
}

// Manager owns the clients of every configured server
type Manager struct {
	mu      sync.Mutex
	servers map[string]*server
}

// NewManager creates clients for every configured server without starting
// them
func NewManager(config ServersConfig) (*Manager, error) {
	m := &Manager{servers: make(map[string]*server)}
	for name, serverConfig := range config.Servers {
		c, err := NewClient(serverConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid mcp server %s", name)
		}
		m.servers[name] = &server{client: c, whiteList: serverConfig.ToolWhiteList}
	}
	return m, nil
}

// Servers returns the configured server names
func (m *Manager) Servers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Initialize starts every configured server up front
func (m *Manager) Initialize(ctx context.Context) error {
	for _, name := range m.Servers() {
		if _, err := m.connect(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) connect(ctx context.Context, name string) (*server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.servers[name]
	if !ok {
		return nil, errors.Errorf("mcp server %q is not configured", name)
	}
	if s.started {
		return s, nil
	}

	log := logger.G(ctx).WithField("server", name)
	log.Debug("initializing mcp client")
	if err := s.client.Start(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to start mcp server %s", name)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "skillet",
		Version: version.Version,
	}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := s.client.Initialize(ctx, initReq); err != nil {
		return nil, errors.Wrapf(err, "failed to initialize mcp server %s", name)
	}
	s.started = true
	log.Info("initialized mcp client")
	return s, nil
}

// CallTool invokes tool on the named server. The text contents of the reply
// are concatenated; a reply that is a JSON object is returned decoded.
// Replies flagged as errors are returned as errors.
func (m *Manager) CallTool(ctx context.Context, serverName, tool string, args skilltypes.Values) (any, error) {
	s, err := m.connect(ctx, serverName)
	if err != nil {
		return nil, err
	}
	if len(s.whiteList) > 0 && !slices.Contains(s.whiteList, tool) {
		return nil, errors.Errorf("tool %q is not allowed on mcp server %s", tool, serverName)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	result, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}

	text := contentText(result.Content)
	if result.IsError {
		return nil, errors.Errorf("tool returned an error: %s", text)
	}

	var obj map[string]any
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return obj, nil
		}
	}
	return text, nil
}

func contentText(contents []mcp.Content) string {
	var sb strings.Builder
	for _, c := range contents {
		if v, ok := c.(mcp.TextContent); ok {
			sb.WriteString(v.Text)
		} else {
			fmt.Fprintf(&sb, "%v", c)
		}
	}
	return sb.String()
}

// Close shuts down every started client
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, s := range m.servers {
		if !s.started {
			continue
		}
		if err := s.client.Close(); err != nil {
			logger.L.WithField("server", name).WithError(err).Error("failed to close mcp client")
			if firstErr == nil {
				firstErr = err
			}
		}
		s.started = false
	}
	return firstErr
}
