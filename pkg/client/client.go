package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"catalogdb/pkg/catalog"
	"catalogdb/pkg/common"
	"catalogdb/pkg/protocol"
)

var ErrNotFound = errors.New("course not found")

type Client struct {
	conn    net.Conn
	addr    string
	timeout time.Duration
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:    conn,
		addr:    addr,
		timeout: 5 * time.Second,
	}, nil
}

// Find returns ErrNotFound when the server has no course with that id.
func (c *Client) Find(id string) (common.Record, error) {
	pkg, err := c.roundTrip(protocol.OpFind, []byte(id), nil)
	if err != nil {
		return common.Record{}, err
	}

	switch pkg.Op {
	case protocol.RespVal:
		records, err := protocol.DecodeRecords(pkg.Value)
		if err != nil {
			return common.Record{}, err
		}
		if len(records) != 1 {
			return common.Record{}, fmt.Errorf("expected 1 record, got %d", len(records))
		}
		return records[0], nil
	case protocol.RespErr:
		if string(pkg.Value) == protocol.MsgNotFound {
			return common.Record{}, ErrNotFound
		}
		return common.Record{}, fmt.Errorf("find failed: %s", pkg.Value)
	default:
		return common.Record{}, errors.New("unknown response")
	}
}

func (c *Client) List() ([]common.Record, error) {
	pkg, err := c.roundTrip(protocol.OpList, nil, nil)
	if err != nil {
		return nil, err
	}
	if pkg.Op != protocol.RespVal {
		return nil, fmt.Errorf("list failed: %s", pkg.Value)
	}
	return protocol.DecodeRecords(pkg.Value)
}

// Load asks the server to reload; an empty path reloads its configured source.
func (c *Client) Load(path string) (int, error) {
	pkg, err := c.roundTrip(protocol.OpLoad, []byte(path), nil)
	if err != nil {
		return 0, err
	}
	if pkg.Op != protocol.RespOK {
		return 0, fmt.Errorf("load failed: %s", pkg.Value)
	}
	var resp struct {
		Courses int `json:"courses"`
	}
	if err := json.Unmarshal(pkg.Value, &resp); err != nil {
		return 0, err
	}
	return resp.Courses, nil
}

func (c *Client) Stats() (catalog.Stats, error) {
	var st catalog.Stats
	pkg, err := c.roundTrip(protocol.OpStats, nil, nil)
	if err != nil {
		return st, err
	}
	if pkg.Op != protocol.RespVal {
		return st, fmt.Errorf("stats failed: %s", pkg.Value)
	}
	err = json.Unmarshal(pkg.Value, &st)
	return st, err
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request and reads its response. Read-only requests
// are retried once on a fresh connection if the exchange failed; a load may
// already have run on the server, so it is not repeated.
func (c *Client) roundTrip(op byte, key, val []byte) (*protocol.Packet, error) {
	pkg, err := c.exchange(op, key, val)
	if err == nil {
		return pkg, nil
	}
	if op == protocol.OpLoad {
		if rerr := c.reconnect(); rerr != nil {
			return nil, fmt.Errorf("%v (reconnect: %w)", err, rerr)
		}
		return nil, err
	}
	if rerr := c.reconnect(); rerr != nil {
		return nil, fmt.Errorf("%v (reconnect: %w)", err, rerr)
	}
	return c.exchange(op, key, val)
}

func (c *Client) exchange(op byte, key, val []byte) (*protocol.Packet, error) {
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := protocol.Encode(c.conn, op, key, val); err != nil {
		return nil, err
	}
	return protocol.Decode(c.conn)
}

func (c *Client) reconnect() error {
	c.conn.Close()
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}
