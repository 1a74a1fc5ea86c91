package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client connects to the lucid daemon over a Unix socket.
type Client struct {
	sockPath string
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath}
}

// Search sends a search request and returns the result.
func (c *Client) Search(query string, limit int) (*SearchResult, error) {
	var res SearchResult
	if err := c.call(MethodSearch, SearchParams{Query: query, Limit: limit}, &res, 30*time.Second); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	var res HealthResult
	if err := c.call(MethodHealth, nil, &res, 5*time.Second); err != nil {
		return nil, err
	}
	return &res, nil
}

// Files lists indexed files, optionally filtered by glob or name substring.
func (c *Client) Files(glob, name string) (*FilesResult, error) {
	var res FilesResult
	if err := c.call(MethodFiles, FilesParams{Glob: glob, Name: name}, &res, 5*time.Second); err != nil {
		return nil, err
	}
	return &res, nil
}

// Reindex asks the daemon to reconcile the whole tree, with an extended timeout.
func (c *Client) Reindex() (*ReindexResult, error) {
	var res ReindexResult
	if err := c.call(MethodReindex, nil, &res, 120*time.Second); err != nil {
		return nil, err
	}
	return &res, nil
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	return c.call(MethodShutdown, nil, nil, 5*time.Second)
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// call sends one request and decodes the result into out (if non-nil).
func (c *Client) call(method string, params, out interface{}, timeout time.Duration) error {
	req := Request{ID: uuid.NewString(), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Set deadline for the whole request/response
	conn.SetDeadline(time.Now().Add(timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		return fmt.Errorf("empty response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return fmt.Errorf("server error: %s", resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
