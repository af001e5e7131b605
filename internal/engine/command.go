// Package engine - command.go
// Command is the wire form of a session command, shared by REST and websocket clients.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/telemetry"
)

// CommandType selects the session operation.
type CommandType string

const (
	CommandConfigure CommandType = "CONFIGURE"
	CommandFill      CommandType = "FILL"
	CommandDump      CommandType = "DUMP"
	CommandLoad      CommandType = "LOAD"
	CommandTransfer  CommandType = "TRANSFER"
	CommandArm       CommandType = "ARM"
	CommandDisarm    CommandType = "DISARM"
	CommandDeliver   CommandType = "DELIVER"
	CommandExplode   CommandType = "EXPLODE"
	CommandTick      CommandType = "TICK"
	CommandSnapshot  CommandType = "SNAPSHOT"
)

// Command is one request against a session.
type Command struct {
	Type     CommandType `json:"type"`
	Bucket   BucketID    `json:"bucket,omitempty"`
	To       BucketID    `json:"to,omitempty"`
	Amount   int         `json:"amount,omitempty"`
	Pressure int         `json:"pressure,omitempty"`
	// Overlapping reports whether a dragged bucket landed on the other one.
	// Nil means it did.
	Overlapping *bool   `json:"overlapping,omitempty"`
	Config      *Config `json:"config,omitempty"`
}

// Result is the reply to a Command. Snapshot is filled in even when the command failed.
type Result struct {
	Command  CommandType `json:"command"`
	Moved    int         `json:"moved,omitempty"`
	Snapshot Snapshot    `json:"snapshot"`
}

// Execute runs cmd, traced and measured.
func (s *GameSession) Execute(ctx context.Context, cmd Command) (Result, error) {
	cmd.Type = CommandType(strings.ToUpper(string(cmd.Type)))
	_, span := telemetry.Tracer().Start(ctx, "session."+strings.ToLower(string(cmd.Type)),
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("command", string(cmd.Type)),
		))
	defer span.End()

	start := time.Now()
	res, err := s.dispatch(cmd)
	s.opts.Metrics.RecordCommand(string(cmd.Type), err, time.Since(start))

	res.Command = cmd.Type
	res.Snapshot = s.Snapshot()
	span.SetAttributes(attribute.String("session.status", string(res.Snapshot.Status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ErrorKind(err)))
	}
	return res, err
}

func (s *GameSession) dispatch(cmd Command) (Result, error) {
	var res Result
	switch cmd.Type {
	case CommandConfigure:
		cfg := s.Config()
		if cmd.Config != nil {
			cfg = *cmd.Config
		}
		return res, s.Configure(cfg)
	case CommandFill:
		return res, s.Fill(cmd.Bucket)
	case CommandDump:
		return res, s.Dump(cmd.Bucket)
	case CommandLoad:
		return res, s.Load(cmd.Bucket, cmd.Amount)
	case CommandTransfer:
		overlapping := cmd.Overlapping == nil || *cmd.Overlapping
		to := cmd.To
		if to == "" {
			to = cmd.Bucket.Other()
		}
		moved, err := s.Transfer(cmd.Bucket, to, overlapping)
		res.Moved = moved
		return res, err
	case CommandArm:
		return res, s.ArmBomb()
	case CommandDisarm:
		return res, s.Disarm(cmd.Pressure)
	case CommandDeliver:
		return res, s.Deliver(cmd.Bucket)
	case CommandExplode:
		return res, s.Explode()
	case CommandTick:
		return res, s.Tick()
	case CommandSnapshot:
		return res, nil
	default:
		return res, fmt.Errorf("%q: %w", cmd.Type, ErrUnknownCommand)
	}
}
