// Package client talks to a tumblebase daemon over its unix socket.
package client

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/t7a/tumblebase/server"
	"github.com/vmihailenco/msgpack"
)

// RemoteError is an error the daemon reported for one request.
type RemoteError struct {
	Kind string
	Msg  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

// Client is one connection, and so one session, to the daemon.
type Client struct {
	conn net.Conn
	enc  *msgpack.Encoder
	dec  *msgpack.Decoder
}

// Dial connects to the daemon listening on sock.
func Dial(sock string) (c *Client, err error) {
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", sock)
	}
	return New(conn), nil
}

// New wraps an already open connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		enc:  msgpack.NewEncoder(conn),
		dec:  msgpack.NewDecoder(conn),
	}
}

// Call sends one request and waits for its result lines.
func (c *Client) Call(verb string, args ...string) (lines []string, err error) {
	err = c.enc.Encode(&server.Request{Verb: verb, Args: args})
	if err != nil {
		return nil, errors.Wrap(err, verb)
	}
	var res server.Response
	err = c.dec.Decode(&res)
	if err != nil {
		return nil, errors.Wrap(err, verb)
	}
	if res.Err != "" {
		return nil, &RemoteError{Kind: res.Kind, Msg: res.Err}
	}
	return res.Lines, nil
}

// Send parses a command line and calls it.
func (c *Client) Send(txt string) (lines []string, err error) {
	req, err := server.Parse(txt)
	if err != nil {
		return
	}
	return c.Call(req.Verb, req.Args...)
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close()
}
