package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"multiverse.game/internal/protocol"
	"multiverse.game/internal/sim/session"
	"multiverse.game/internal/sim/world"
	"multiverse.game/internal/sim/worldgen/placement"
)

type Options struct {
	// MOVE token bucket per connection.
	MovePerSecond float64
	MoveBurst     int

	// AllowedOrigins restricts browser origins for the HTTP routes and the
	// websocket upgrade. Empty allows all.
	AllowedOrigins []string
	// LoopbackOnly restricts /v1/bootstrap to loopback clients.
	LoopbackOnly bool
}

type Server struct {
	world *world.World
	log   *log.Logger
	opts  Options

	cors     *cors.Cors
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger, opts Options) *Server {
	if opts.MovePerSecond <= 0 {
		opts.MovePerSecond = 60
	}
	if opts.MoveBurst <= 0 {
		opts.MoveBurst = 30
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		world: w,
		log:   logger,
		opts:  opts,
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet},
		}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  16 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin applies the CORS allow-list to websocket upgrades. Requests
// without an Origin header come from non-browser clients and pass.
func (s *Server) checkOrigin(r *http.Request) bool {
	if r.Header.Get("Origin") == "" {
		return true
	}
	return s.cors.OriginAllowed(r)
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// Routes mounts the websocket and bootstrap endpoints behind CORS.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", s.Handler())
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	return s.cors.Handler(mux)
}

type BootstrapResponse struct {
	ProtocolVersion string               `json:"protocol_version"`
	WorldID         string               `json:"world_id"`
	Tick            uint64               `json:"tick"`
	WorldParams     protocol.WorldParams `json:"world_params"`
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.opts.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.CurrentTick(),
			WorldParams:     s.world.WorldParams(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, pilot, out := s.handshake(conn)
		if sid == "" {
			return
		}
		defer s.world.LeaveObserver(sid)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Replies from the reader go through the writer; gorilla allows a
		// single concurrent writer.
		replies := make(chan []byte, 16)

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-replies:
				case m, ok := <-out:
					if !ok {
						cancel()
						_ = conn.Close()
						return
					}
					b = m
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		c := &client{
			s:       s,
			ctx:     ctx,
			pilot:   pilot,
			limiter: rate.NewLimiter(rate.Limit(s.opts.MovePerSecond), s.opts.MoveBurst),
			replies: replies,
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			c.handle(msg)
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-writeDone
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sid string, pilot bool, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		writeError(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return "", false, nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		writeError(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return "", false, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		writeError(conn, protocol.ErrProtoVersion, fmt.Sprintf("server speaks %s", protocol.Version))
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", false, nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)
	sid = fmt.Sprintf("S%d", s.nextID.Add(1))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	params, err := s.world.JoinObserver(ctx, sid, out)
	if err != nil {
		code := protocol.ErrWorldBusy
		if errors.Is(err, world.ErrClosed) {
			code = protocol.ErrWorldClosed
		}
		writeError(conn, code, err.Error())
		closeWith(conn, websocket.CloseTryAgainLater, "join failed")
		return "", false, nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sid,
		WorldParams:     params,
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.world.LeaveObserver(sid)
		return "", false, nil
	}
	s.logf("ws: %s joined as %q pilot=%v", sid, hello.ClientName, hello.Pilot)
	return sid, hello.Pilot, out
}

type client struct {
	s       *Server
	ctx     context.Context
	pilot   bool
	limiter *rate.Limiter
	replies chan<- []byte
}

func (c *client) reply(code, msg string) {
	b, err := json.Marshal(protocol.NewError(code, msg))
	if err != nil {
		return
	}
	select {
	case c.replies <- b:
	default:
		// Client is not draining; it will see the next TICK anyway.
	}
}

func (c *client) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		c.reply(protocol.ErrProtoBadRequest, "invalid json")
		return
	}
	if base.ProtocolVersion != protocol.Version {
		c.reply(protocol.ErrProtoVersion, "bad protocol_version")
		return
	}
	switch base.Type {
	case protocol.TypeMove, protocol.TypeLevelWon, protocol.TypeResidue:
	default:
		c.reply(protocol.ErrProtoBadRequest, "unknown type "+base.Type)
		return
	}
	if !c.pilot {
		c.reply(protocol.ErrNoPermission, "only the pilot may send "+base.Type)
		return
	}

	switch base.Type {
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err := json.Unmarshal(msg, &m); err != nil || !finite(m.Pos[0]) || !finite(m.Pos[1]) {
			c.reply(protocol.ErrBadRequest, "bad MOVE")
			return
		}
		if !c.addressable(placement.Vec2FromArray(m.Pos)) {
			c.reply(protocol.ErrBadRequest, "MOVE position out of range")
			return
		}
		if !c.limiter.Allow() {
			c.reply(protocol.ErrRateLimit, "MOVE rate exceeded")
			return
		}
		c.submitErr(c.s.world.SubmitMove(c.ctx, placement.Vec2FromArray(m.Pos)))

	case protocol.TypeLevelWon:
		var m protocol.LevelWonMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			c.reply(protocol.ErrBadRequest, "bad LEVEL_WON")
			return
		}
		err := c.s.world.SubmitLevelWon(c.ctx, m.Level)
		if errors.Is(err, session.ErrUnknownLevel) {
			c.reply(protocol.ErrUnknownLevel, err.Error())
			return
		}
		c.submitErr(err)

	case protocol.TypeResidue:
		var m protocol.ResidueMsg
		if err := json.Unmarshal(msg, &m); err != nil || !finite(m.Pos[0]) || !finite(m.Pos[1]) || !finite(m.Radius) || m.Radius <= 0 {
			c.reply(protocol.ErrBadRequest, "bad RESIDUE")
			return
		}
		if !c.addressable(placement.Vec2FromArray(m.Pos)) {
			c.reply(protocol.ErrBadRequest, "RESIDUE position out of range")
			return
		}
		layer := placement.Foreground
		if m.Background {
			layer = placement.Background
		}
		_, err := c.s.world.SubmitResidue(c.ctx, placement.Vec2FromArray(m.Pos), m.Radius, layer)
		c.submitErr(err)
	}
}

func (c *client) submitErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, world.ErrClosed):
		c.reply(protocol.ErrWorldClosed, err.Error())
	case errors.Is(err, context.Canceled):
	default:
		c.reply(protocol.ErrInternal, err.Error())
	}
}

// addressable reports whether pos falls in a chunk both layers can index.
func (c *client) addressable(pos placement.Vec2) bool {
	params := c.s.world.WorldParams()
	for _, size := range []float64{params.Foreground.ChunkSize, params.Background.ChunkSize} {
		if size > 0 && !placement.Addressable(pos, size) {
			return false
		}
	}
	return true
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func writeError(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError(code, msg))
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
