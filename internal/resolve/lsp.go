package resolve

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dusk-indust/girder/internal/parse"
)

// LSPOracle runs a language server as a child process and asks it for
// definitions over JSON-RPC with Content-Length framing. A single read
// loop owns the server's stdout and dispatches replies to waiters by
// id, so a reply that arrives after its caller timed out is dropped
// instead of corrupting the next call's read.
type LSPOracle struct {
	root  string
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu      sync.Mutex
	nextID  int
	pending map[int]chan rpcReply
	readErr error
}

type rpcReply struct {
	resp rpcResponse
	err  error
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type lspPosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type lspLocation struct {
	URI   string `json:"uri"`
	Range struct {
		Start lspPosition `json:"start"`
	} `json:"range"`
}

// NewLSPOracle starts the given language server command rooted at root
// and performs the initialize handshake.
func NewLSPOracle(root string, command string, args ...string) (*LSPOracle, error) {
	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lsp stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("lsp stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	o := newLSPOracleFromPipes(root, stdin, stdout)
	o.cmd = cmd
	if _, err := o.call(context.Background(), "initialize", map[string]any{
		"processId":    nil,
		"rootUri":      "file://" + root,
		"capabilities": map[string]any{},
	}); err != nil {
		o.Close()
		return nil, fmt.Errorf("lsp initialize: %w", err)
	}
	if err := o.notify("initialized", map[string]any{}); err != nil {
		o.Close()
		return nil, fmt.Errorf("lsp initialized: %w", err)
	}
	return o, nil
}

// newLSPOracleFromPipes wires an oracle over raw transport pipes and
// starts the read loop. The exec plumbing in NewLSPOracle sits on top.
func newLSPOracleFromPipes(root string, stdin io.WriteCloser, stdout io.Reader) *LSPOracle {
	o := &LSPOracle{
		root:    root,
		stdin:   stdin,
		pending: make(map[int]chan rpcReply),
	}
	go o.readLoop(bufio.NewReader(stdout))
	return o
}

// readLoop owns stdout. Replies route to the waiter registered under
// their id; a reply whose waiter already gave up is dropped. A read
// error is terminal and fails every current and future call.
func (o *LSPOracle) readLoop(r *bufio.Reader) {
	for {
		body, err := readFramed(r)
		if err != nil {
			o.failPending(err)
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			o.failPending(err)
			return
		}
		// Server notifications carry no id.
		if resp.ID == 0 {
			continue
		}
		o.mu.Lock()
		ch, ok := o.pending[resp.ID]
		if ok {
			delete(o.pending, resp.ID)
		}
		o.mu.Unlock()
		if ok {
			ch <- rpcReply{resp: resp}
		}
	}
}

func (o *LSPOracle) failPending(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.readErr = err
	for id, ch := range o.pending {
		delete(o.pending, id)
		ch <- rpcReply{err: err}
	}
}

// Locate asks the server for the definition at the reference site.
func (o *LSPOracle) Locate(ctx context.Context, ref parse.Reference) (SymbolKey, float64, error) {
	result, err := o.call(ctx, "textDocument/definition", map[string]any{
		"textDocument": map[string]any{"uri": "file://" + filepath.Join(o.root, ref.FilePath)},
		"position":     lspPosition{Line: ref.Line - 1, Character: 0},
	})
	if err != nil {
		return SymbolKey{}, 0, err
	}

	var locations []lspLocation
	if err := json.Unmarshal(result, &locations); err != nil {
		var single lspLocation
		if err := json.Unmarshal(result, &single); err != nil {
			return SymbolKey{}, 0, fmt.Errorf("lsp definition result: %w", err)
		}
		locations = []lspLocation{single}
	}
	if len(locations) == 0 {
		return SymbolKey{}, 0, ErrOracleMiss
	}

	path := strings.TrimPrefix(locations[0].URI, "file://")
	if rel, err := filepath.Rel(o.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	return SymbolKey{Name: ref.Name, FilePath: path, Kind: parse.DefFunction}, 0.99, nil
}

// Close shuts the server down.
func (o *LSPOracle) Close() error {
	o.stdin.Close()
	if o.cmd == nil {
		return nil
	}
	if o.cmd.Process != nil {
		o.cmd.Process.Kill()
	}
	return o.cmd.Wait()
}

// call sends one request and blocks until its response arrives or ctx
// expires. A timed-out call deregisters its waiter, so the read loop
// drops the eventual reply on the floor.
func (o *LSPOracle) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	o.mu.Lock()
	if o.readErr != nil {
		err := o.readErr
		o.mu.Unlock()
		return nil, err
	}
	o.nextID++
	id := o.nextID
	ch := make(chan rpcReply, 1)
	o.pending[id] = ch
	err := writeFramed(o.stdin, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	o.mu.Unlock()
	if err != nil {
		o.mu.Lock()
		delete(o.pending, id)
		o.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		o.mu.Lock()
		delete(o.pending, id)
		o.mu.Unlock()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, fmt.Errorf("lsp %s: %s", method, r.resp.Error.Message)
		}
		return r.resp.Result, nil
	}
}

func (o *LSPOracle) notify(method string, params any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
	if err != nil {
		return err
	}
	return writeRaw(o.stdin, body)
}

// readFramed reads one Content-Length framed message.
func readFramed(r *bufio.Reader) ([]byte, error) {
	var contentLength int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ": "); ok && name == "Content-Length" {
			contentLength, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}
	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	return body, nil
}

// writeFramed marshals msg and writes it with a Content-Length header.
func writeFramed(w io.Writer, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return writeRaw(w, body)
}

func writeRaw(w io.Writer, body []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
