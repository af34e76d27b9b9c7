// Package logger holds the package-level subsystem loggers. They default to
// no-op implementations and are replaced by logger/zap.Init.
package logger

import (
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Repo is the repository facade logger.
	Repo types.Logger = noop{}
	// Mongo is the mongo adapter logger.
	Mongo types.Logger = noop{}
	// Firestore is the firestore adapter logger.
	Firestore types.Logger = noop{}
)

// noop implements types.Logger and discards everything.
type noop struct{}

var _ types.Logger = (*noop)(nil)

func (noop) Debug(...any) {}
func (noop) Info(...any)  {}
func (noop) Warn(...any)  {}
func (noop) Error(...any) {}
func (noop) Fatal(...any) {}

func (noop) Debugf(string, ...any) {}
func (noop) Infof(string, ...any)  {}
func (noop) Warnf(string, ...any)  {}
func (noop) Errorf(string, ...any) {}
func (noop) Fatalf(string, ...any) {}

func (noop) Debugw(string, ...any) {}
func (noop) Infow(string, ...any)  {}
func (noop) Warnw(string, ...any)  {}
func (noop) Errorw(string, ...any) {}
func (noop) Fatalw(string, ...any) {}

func (noop) Debugz(string, ...zap.Field) {}
func (noop) Infoz(string, ...zap.Field)  {}
func (noop) Warnz(string, ...zap.Field)  {}
func (noop) Errorz(string, ...zap.Field) {}
func (noop) Fatalz(string, ...zap.Field) {}

func (n noop) With(...string) types.Logger                            { return n }
func (n noop) WithObject(string, zapcore.ObjectMarshaler) types.Logger { return n }
func (n noop) WithArray(string, zapcore.ArrayMarshaler) types.Logger   { return n }
func (n noop) WithPhase(consts.Phase, string) types.Logger             { return n }
