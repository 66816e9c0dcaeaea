package grpcapi

import (
	"errors"
	"io"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"rtc-session-orchestrator/internal/observability"
	"rtc-session-orchestrator/internal/observability/logging"
	"rtc-session-orchestrator/internal/observability/metrics"
	"rtc-session-orchestrator/internal/service/transcript"
)

const (
	ServiceName = "rtc.orchestrator.v1.TranscriptIngest"

	// ChannelMetadataKey carries the channel a frame stream belongs to.
	ChannelMetadataKey = "x-rtc-channel"
)

// FrameSink accepts raw transcript frames per channel.
type FrameSink interface {
	Submit(channel string, frame []byte) error
}

// Server exposes transcript frame ingest, the standard health service and reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	frames FrameSink
	logger zerolog.Logger
}

// New builds the gRPC server with logging and metrics interceptors.
func New(frames FrameSink, m *metrics.Metrics) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)
	s := &Server{
		grpc:   g,
		health: health.NewServer(),
		frames: frames,
		logger: logging.WithComponent("grpc"),
	}

	grpc_health_v1.RegisterHealthServer(g, s.health)
	g.RegisterService(&IngestServiceDesc, s)
	reflection.Register(g)

	s.SetServing(false)
	return s
}

// SetServing flips the overall and ingest health status.
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop reports NOT_SERVING and waits for open streams to finish.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// frameIngester is the handler type of IngestServiceDesc.
type frameIngester interface {
	StreamFrames(stream grpc.ServerStream) error
}

// IngestServiceDesc describes a client-streaming call: the client sends
// BytesValue frames and receives a UInt64Value with the number accepted.
var IngestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*frameIngester)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "StreamFrames",
		Handler:       streamFramesHandler,
		ClientStreams: true,
	}},
	Metadata: "rtc/orchestrator/v1/ingest.proto",
}

// StreamFramesMethod is the full method name clients dial.
const StreamFramesMethod = "/" + ServiceName + "/StreamFrames"

func streamFramesHandler(srv any, stream grpc.ServerStream) error {
	return srv.(frameIngester).StreamFrames(stream)
}

// StreamFrames forwards every received frame to the channel's transcript pipeline.
func (s *Server) StreamFrames(stream grpc.ServerStream) error {
	md, _ := metadata.FromIncomingContext(stream.Context())
	vals := md.Get(ChannelMetadataKey)
	if len(vals) == 0 || vals[0] == "" {
		return status.Errorf(codes.InvalidArgument, "%s metadata is required", ChannelMetadataKey)
	}
	channel := vals[0]
	logger := s.logger.With().Str("channel", channel).Logger()

	var accepted uint64
	for {
		frame := &wrapperspb.BytesValue{}
		err := stream.RecvMsg(frame)
		if errors.Is(err, io.EOF) {
			logger.Info().Uint64("accepted", accepted).Msg("Frame stream completed")
			return stream.SendMsg(wrapperspb.UInt64(accepted))
		}
		if err != nil {
			return err
		}

		switch err := s.frames.Submit(channel, frame.GetValue()); {
		case err == nil:
			accepted++
		case errors.Is(err, transcript.ErrNoPipeline):
			return status.Error(codes.NotFound, err.Error())
		case errors.Is(err, transcript.ErrQueueFull):
			// dropped and counted by the pipeline
		default:
			return status.Error(codes.Internal, err.Error())
		}
	}
}
