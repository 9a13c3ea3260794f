package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"calldesk/internal/api"
	"calldesk/internal/callstore"
	"calldesk/internal/daemon"
	"calldesk/internal/logging"
	"calldesk/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Calldesk", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun calldesk daemon stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.AgentID = status.AgentID
	resp.CallStats = api.MergeCallStats(status.CallStats)
	resp.Ingest = IngestStatus{
		Suspended:      status.Ingest.Suspended,
		PendingRetries: status.Ingest.PendingRetries,
		DetectedLines:  status.Ingest.DetectedLines,
		BusinessLine:   status.Ingest.BusinessLine,
	}
	resp.FeedClients = status.FeedClients
	return nil
}

func (s *service) CallList(req CallListRequest, resp *CallListResponse) error {
	statuses := make([]callstore.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := callstore.ParseStatus(status)
		if !ok {
			return fmt.Errorf("unknown status %q", status)
		}
		statuses = append(statuses, parsed)
	}
	calls, err := s.daemon.Calls().List(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Calls = calls
	return nil
}

func (s *service) CallDescribe(req CallDescribeRequest, resp *CallDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid call id %d", req.ID)
	}
	call, err := s.daemon.Calls().Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if call == nil {
		return fmt.Errorf("call %d not found", req.ID)
	}
	resp.Call = *call
	return nil
}

func (s *service) CallGroup(req CallGroupRequest, resp *CallGroupResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid group id %d", req.ID)
	}
	group, err := s.daemon.Calls().DescribeGroup(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Group = *group
	return nil
}

func (s *service) Claim(req ClaimRequest, resp *ClaimResponse) error {
	if strings.TrimSpace(req.AgentID) == "" {
		return errors.New("claim requires an agent id")
	}
	group, err := s.daemon.Reservations().Claim(s.ctx, req.GroupID, req.AgentID)
	if err != nil {
		var conflict *callstore.ConflictError
		if errors.As(err, &conflict) {
			resp.Claimed = false
			resp.Owner = conflict.Owner
			return nil
		}
		return err
	}
	resp.Claimed = true
	resp.Group = api.FromGroup(group)
	return nil
}

func (s *service) Release(req ReleaseRequest, resp *ReleaseResponse) error {
	if strings.TrimSpace(req.AgentID) == "" {
		return errors.New("release requires an agent id")
	}
	group, err := s.daemon.Reservations().Release(s.ctx, req.GroupID, req.AgentID)
	if err != nil {
		return err
	}
	resp.Group = api.FromGroup(group)
	return nil
}

func (s *service) Complete(req CompleteRequest, resp *CompleteResponse) error {
	if strings.TrimSpace(req.AgentID) == "" {
		return errors.New("complete requires an agent id")
	}
	group, err := s.daemon.Reservations().Complete(s.ctx, req.GroupID, req.AgentID)
	if err != nil {
		return err
	}
	resp.Group = api.FromGroup(group)
	return nil
}

func (s *service) AddRecipient(req AddRecipientRequest, resp *AddRecipientResponse) error {
	if strings.TrimSpace(req.AgentID) == "" {
		return errors.New("recipient requires an agent id")
	}
	group, err := s.daemon.Reservations().AddRecipient(s.ctx, req.CallID, req.AgentID)
	if err != nil {
		return err
	}
	resp.Group = api.FromGroup(group)
	resp.MultiAgent = resp.Group.MultiAgent
	return nil
}

func (s *service) SlaAlerts(_ SlaAlertsRequest, resp *SlaAlertsResponse) error {
	alerts, err := s.daemon.Calls().Alerts(s.ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	resp.Alerts = alerts
	return nil
}

func (s *service) NeedsAttention(_ NeedsAttentionRequest, resp *NeedsAttentionResponse) error {
	calls, err := s.daemon.Calls().NeedsAttention(s.ctx)
	if err != nil {
		return err
	}
	resp.Calls = calls
	return nil
}

func (s *service) ClientAdd(req ClientAddRequest, resp *ClientAddResponse) error {
	client, err := s.daemon.Clients().Add(s.ctx, req.Phone, req.Name, req.Address, req.Notes)
	if err != nil {
		return err
	}
	resp.Client = *client
	s.log().Info("client registered via IPC",
		logging.String(logging.FieldEventType, "client_add"),
		logging.Int64("client_id", client.ID))
	return nil
}

func (s *service) ClientList(_ ClientListRequest, resp *ClientListResponse) error {
	clients, err := s.daemon.Clients().List(s.ctx)
	if err != nil {
		return err
	}
	resp.Clients = clients
	return nil
}

func (s *service) ClientRemove(req ClientRemoveRequest, resp *ClientRemoveResponse) error {
	removed, err := s.daemon.Clients().Remove(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) SetBusinessLine(req SetBusinessLineRequest, resp *SetBusinessLineResponse) error {
	if err := s.daemon.SetBusinessLine(s.ctx, req.LineID); err != nil {
		return err
	}
	resp.BusinessLine = strings.TrimSpace(req.LineID)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) CallHealth(_ CallHealthRequest, resp *CallHealthResponse) error {
	health, err := s.daemon.CallHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Missed = health.Missed
	resp.Reserved = health.Reserved
	resp.Completed = health.Completed
	resp.Merged = health.Merged
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalRecords = health.TotalRecords
	resp.FreeDiskBytes = health.FreeDiskBytes
	resp.Error = health.Error
	if err != nil {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
