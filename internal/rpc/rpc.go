// Package rpc exposes the download stream over gRPC. The service speaks a
// JSON message codec so the wire payloads match the REST and SSE surfaces,
// and it shares the REST listener: the mux routes on the application/grpc
// content type.
package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anisub/anisub/internal/hub"
	"github.com/anisub/anisub/internal/model"
)

// subscriberQueueSize bounds how far a gRPC subscriber may fall behind
// before the stream is cut with Unavailable.
const subscriberQueueSize = 4

// SubscribeRequest is the empty request message for Subscribe.
type SubscribeRequest struct{}

// DownloadCollection is one streamed response message: a single download
// group with all its resolutions.
type DownloadCollection struct {
	model.DownloadGroup
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "json" }

// DownloadsServer implements the Downloads streaming service.
type DownloadsServer struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

// NewServer builds a gRPC server with the Downloads service registered.
func NewServer(h *hub.Hub, logger zerolog.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	srv.RegisterService(&downloadsServiceDesc, &DownloadsServer{
		hub:    h,
		logger: logger.With().Str("component", "rpc").Logger(),
	})
	return srv
}

func (s *DownloadsServer) subscribe(stream grpc.ServerStream) error {
	sub := s.hub.Subscribe()
	defer sub.Close()

	ctx := stream.Context()
	queue := make(chan model.DownloadGroup, subscriberQueueSize)
	lagged := make(chan error, 1)

	go func() {
		defer close(queue)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Lagged():
				lagged <- status.Error(codes.Unavailable, "subscriber lagged behind broadcast")
				return
			case g := <-sub.Updates():
				select {
				case queue <- g:
				default:
					lagged <- status.Error(codes.Unavailable, "subscriber queue overflow")
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-lagged:
			s.logger.Warn().Err(err).Msg("closing lagged subscriber")
			return err
		case g, ok := <-queue:
			if !ok {
				// The forwarder may have closed the queue because of a
				// lag; surface that instead of a clean end of stream.
				select {
				case err := <-lagged:
					s.logger.Warn().Err(err).Msg("closing lagged subscriber")
					return err
				default:
					return nil
				}
			}
			if err := stream.SendMsg(&DownloadCollection{DownloadGroup: g}); err != nil {
				return err
			}
		}
	}
}

// downloadsService pins the handler type for service registration.
type downloadsService interface {
	subscribe(stream grpc.ServerStream) error
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	var req SubscribeRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	return srv.(downloadsService).subscribe(stream)
}

var downloadsServiceDesc = grpc.ServiceDesc{
	ServiceName: "anisub.v1.Downloads",
	HandlerType: (*downloadsService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "anisub/v1/downloads.proto",
}

// Mux serves gRPC and the REST handler on one cleartext listener. HTTP/2
// requests carrying an application/grpc content type go to the gRPC
// server, everything else to the REST handler.
func Mux(grpcServer *grpc.Server, rest http.Handler) http.Handler {
	return h2c.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor == 2 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc") {
			grpcServer.ServeHTTP(w, r)
			return
		}
		rest.ServeHTTP(w, r)
	}), &http2.Server{})
}
