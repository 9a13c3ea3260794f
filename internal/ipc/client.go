package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Calldesk.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Calldesk.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Calldesk.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CallList returns primary calls optionally filtered by statuses.
func (c *Client) CallList(statuses []string) (*CallListResponse, error) {
	var resp CallListResponse
	req := CallListRequest{Statuses: statuses}
	if err := c.client.Call("Calldesk.CallList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CallDescribe returns details for a single call.
func (c *Client) CallDescribe(id int64) (*CallDescribeResponse, error) {
	var resp CallDescribeResponse
	req := CallDescribeRequest{ID: id}
	if err := c.client.Call("Calldesk.CallDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CallGroup returns a merged group by primary id.
func (c *Client) CallGroup(id int64) (*CallGroupResponse, error) {
	var resp CallGroupResponse
	req := CallGroupRequest{ID: id}
	if err := c.client.Call("Calldesk.CallGroup", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Claim reserves a call group for an agent.
func (c *Client) Claim(groupID int64, agentID string) (*ClaimResponse, error) {
	var resp ClaimResponse
	req := ClaimRequest{GroupID: groupID, AgentID: agentID}
	if err := c.client.Call("Calldesk.Claim", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Release returns a claimed group to the missed pool.
func (c *Client) Release(groupID int64, agentID string) (*ReleaseResponse, error) {
	var resp ReleaseResponse
	req := ReleaseRequest{GroupID: groupID, AgentID: agentID}
	if err := c.client.Call("Calldesk.Release", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete marks a claimed group handled.
func (c *Client) Complete(groupID int64, agentID string) (*CompleteResponse, error) {
	var resp CompleteResponse
	req := CompleteRequest{GroupID: groupID, AgentID: agentID}
	if err := c.client.Call("Calldesk.Complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddRecipient records that another agent observed a call.
func (c *Client) AddRecipient(callID int64, agentID string) (*AddRecipientResponse, error) {
	var resp AddRecipientResponse
	req := AddRecipientRequest{CallID: callID, AgentID: agentID}
	if err := c.client.Call("Calldesk.AddRecipient", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SlaAlerts returns groups past the response threshold.
func (c *Client) SlaAlerts() (*SlaAlertsResponse, error) {
	var resp SlaAlertsResponse
	if err := c.client.Call("Calldesk.SlaAlerts", SlaAlertsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NeedsAttention returns completed calls without a follow-up note.
func (c *Client) NeedsAttention() (*NeedsAttentionResponse, error) {
	var resp NeedsAttentionResponse
	if err := c.client.Call("Calldesk.NeedsAttention", NeedsAttentionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClientAdd registers a client in the registry.
func (c *Client) ClientAdd(phone, name, address, notes string) (*ClientAddResponse, error) {
	var resp ClientAddResponse
	req := ClientAddRequest{Phone: phone, Name: name, Address: address, Notes: notes}
	if err := c.client.Call("Calldesk.ClientAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClientList returns the registered clients.
func (c *Client) ClientList() (*ClientListResponse, error) {
	var resp ClientListResponse
	if err := c.client.Call("Calldesk.ClientList", ClientListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClientRemove removes a client by id.
func (c *Client) ClientRemove(id int64) (*ClientRemoveResponse, error) {
	var resp ClientRemoveResponse
	req := ClientRemoveRequest{ID: id}
	if err := c.client.Call("Calldesk.ClientRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetBusinessLine selects the business line and resumes ingestion.
func (c *Client) SetBusinessLine(lineID string) (*SetBusinessLineResponse, error) {
	var resp SetBusinessLineResponse
	req := SetBusinessLineRequest{LineID: lineID}
	if err := c.client.Call("Calldesk.SetBusinessLine", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Calldesk.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CallHealth returns aggregate call-store diagnostics.
func (c *Client) CallHealth() (*CallHealthResponse, error) {
	var resp CallHealthResponse
	if err := c.client.Call("Calldesk.CallHealth", CallHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Calldesk.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Calldesk.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
