// Package rpc exposes the dice pipeline as the dice.v1.Dice gRPC service.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/inference"
	"github.com/banshee-data/dice/internal/pipeline"
)

// Parameter field names used by GetParams and SetParams.
const (
	FieldThreshold  = "threshold"
	FieldNoiseLevel = "noise_level"
	FieldSeed       = "seed"
)

const (
	maxMsgSize   = 1 << 20
	stopGrace    = 5 * time.Second
	maxExactSeed = 1 << 53
)

// Service implements DiceServer on top of a pipeline.
type Service struct {
	pipeline *pipeline.Pipeline
}

func NewService(p *pipeline.Pipeline) *Service {
	return &Service{pipeline: p}
}

func (s *Service) Transform(ctx context.Context, in *structpb.ListValue) (*structpb.ListValue, error) {
	coords, err := CoordsFromList(in)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := s.pipeline.Transform(ctx, coords)
	if err != nil {
		return nil, toStatus(err)
	}
	return ListFromCoords(out), nil
}

func (s *Service) GetParams(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return paramsStruct(s.pipeline.Params().Snapshot())
}

func (s *Service) SetParams(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	apply, err := paramsUpdate(in)
	if err != nil {
		return nil, toStatus(err)
	}
	p, err := s.pipeline.Params().Update(apply)
	if err != nil {
		return nil, toStatus(err)
	}
	return paramsStruct(p)
}

// CoordsFromList converts a list of integral numbers to coordinates.
func CoordsFromList(l *structpb.ListValue) ([]int, error) {
	vals := l.GetValues()
	out := make([]int, len(vals))
	for i, v := range vals {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number: %w", i, grid.ErrInvalidEncoding)
		}
		f := n.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return nil, fmt.Errorf("element %d (%v) is not an integer: %w", i, f, grid.ErrInvalidEncoding)
		}
		out[i] = int(f)
	}
	return out, nil
}

// ListFromCoords converts coordinates to a list of numbers.
func ListFromCoords(coords []int) *structpb.ListValue {
	vals := make([]*structpb.Value, len(coords))
	for i, c := range coords {
		vals[i] = structpb.NewNumberValue(float64(c))
	}
	return &structpb.ListValue{Values: vals}
}

func paramsStruct(p pipeline.Params) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(map[string]interface{}{
		FieldThreshold:  p.Threshold,
		FieldNoiseLevel: p.NoiseLevel,
		FieldSeed:       p.Seed,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode parameters: %v", err)
	}
	return st, nil
}

// paramsUpdate validates the request fields and returns a function applying
// them. Absent fields are left unchanged.
func paramsUpdate(in *structpb.Struct) (func(*pipeline.Params), error) {
	var threshold, noise *float64
	var seed *int64
	for name, v := range in.GetFields() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a number", pipeline.ErrInvalidParams, name)
		}
		f := n.NumberValue
		switch name {
		case FieldThreshold:
			threshold = &f
		case FieldNoiseLevel:
			noise = &f
		case FieldSeed:
			if f != math.Trunc(f) || math.Abs(f) > maxExactSeed {
				return nil, fmt.Errorf("%w: seed must be an integer within ±2^53, got %v", pipeline.ErrInvalidParams, f)
			}
			sv := int64(f)
			seed = &sv
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", pipeline.ErrInvalidParams, name)
		}
	}
	return func(p *pipeline.Params) {
		if threshold != nil {
			p.Threshold = *threshold
		}
		if noise != nil {
			p.NoiseLevel = *noise
		}
		if seed != nil {
			p.Seed = *seed
		}
	}, nil
}

// toStatus maps pipeline failures onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, grid.ErrInvalidEncoding),
		errors.Is(err, grid.ErrShapeMismatch),
		errors.Is(err, pipeline.ErrInvalidParams):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, inference.ErrNotInitialized):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, inference.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("[RPC] %s %s %vms", status.Code(err), info.FullMethod, float64(time.Since(start).Nanoseconds())/1e6)
	return resp, err
}

// NewGRPCServer returns a grpc.Server with svc registered and request
// logging enabled.
func NewGRPCServer(svc DiceServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
		grpc.ChainUnaryInterceptor(loggingInterceptor),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterDiceServer(s, svc)
	return s
}

// Serve runs svc on lis until ctx is done, then stops gracefully. In-flight
// calls get stopGrace to finish before they are cancelled.
func Serve(ctx context.Context, lis net.Listener, svc DiceServer) error {
	s := NewGRPCServer(svc)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[RPC] gRPC server listening on %s", lis.Addr())
		errCh <- s.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(stopGrace):
		s.Stop()
	}
	<-errCh
	log.Printf("[RPC] gRPC server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, svc DiceServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return Serve(ctx, lis, svc)
}
