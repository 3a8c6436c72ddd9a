package server

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/session"
	"github.com/ValentinKolb/dAFT/lib/tables"
)

// LocalShard is a sandbox living in the server process. Operations are
// serialized through a session, table registrations and token reservations
// go to the sandbox directly.
type LocalShard struct {
	*session.Session
	sandbox *aft.Sandbox
}

// NewLocalShard creates a sandbox configured with cfg and starts its session.
func NewLocalShard(cfg aft.Config) *LocalShard {
	sb := aft.NewSandbox(cfg)
	return &LocalShard{
		Session: session.New(sb, session.Options{Name: cfg.Name}),
		sandbox: sb,
	}
}

// Sandbox returns the hosted sandbox.
func (l *LocalShard) Sandbox() *aft.Sandbox { return l.sandbox }

func (l *LocalShard) String() string {
	return fmt.Sprintf("local shard %s (%d nodes)", l.sandbox.Name(), l.sandbox.NodeCount())
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.Shard)
// --------------------------------------------------------------------------

func (l *LocalShard) FindType(name string) (aft.TypeIndex, bool) { return l.sandbox.FindType(name) }
func (l *LocalShard) AllocateToken() aft.NodeToken               { return l.sandbox.AllocateToken() }

func (l *LocalShard) InsertType(name string) (aft.TypeIndex, error) {
	return l.sandbox.InsertType(name)
}

func (l *LocalShard) InsertField(name string, width uint32) (tables.FieldInfo, error) {
	return l.sandbox.InsertField(name, width)
}

func (l *LocalShard) InsertProto(name string) (tables.Index, error) {
	return l.sandbox.InsertProto(name)
}

func (l *LocalShard) CreateGroup(name string) (aft.GroupIndex, error) {
	return l.sandbox.CreateGroup(name)
}

func (l *LocalShard) ReserveTokens(n uint64) (aft.NodeToken, error) {
	if n == 0 {
		return aft.TokenNone, aft.NewError(aft.RetCInvalidOperation, "cannot reserve zero tokens")
	}
	return l.sandbox.ReserveTokens(n), nil
}

func (l *LocalShard) MaxToken() (aft.NodeToken, error) { return l.sandbox.MaxToken(), nil }
