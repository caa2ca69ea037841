package controller

import (
	"io"
	gohttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/odo/cli"
	"go.dedis.ch/odo/cli/node"
	"go.dedis.ch/odo/mino/proxy"
	"golang.org/x/xerrors"
)

func TestMinimal_SetCommands(t *testing.T) {
	minimal := NewController()
	builder := &fakeBuilder{}
	minimal.SetCommands(builder)

	require.Len(t, builder.startFlags, 2)
	require.Equal(t, AddrFlag, builder.startFlags[0].(cli.StringFlag).Name)
	require.Equal(t, PathFlag, builder.startFlags[1].(cli.StringFlag).Name)
}

func TestMinimal_OnStart(t *testing.T) {
	minimal := NewController()

	inj := node.NewInjector()
	err := minimal.OnStart(fakeFlags{
		AddrFlag: "127.0.0.1:0",
		PathFlag: "/metrics",
	}, inj)
	require.NoError(t, err)

	var srv proxy.Proxy
	require.NoError(t, inj.Resolve(&srv))

	res, err := gohttp.Get("http://" + srv.GetAddr().String() + "/metrics")
	require.NoError(t, err)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	require.Contains(t, string(body), "go_goroutines")

	require.NoError(t, minimal.OnStop(inj))
}

func TestMinimal_Disabled_OnStart(t *testing.T) {
	minimal := NewController()

	inj := node.NewInjector()
	err := minimal.OnStart(fakeFlags{}, inj)
	require.NoError(t, err)

	var srv proxy.Proxy
	require.EqualError(t, inj.Resolve(&srv), "couldn't find dependency for 'proxy.Proxy'")

	// Nothing to stop.
	require.NoError(t, minimal.OnStop(inj))
}

func TestMinimal_BadProxy_OnStart(t *testing.T) {
	defer func(fac func(string) (proxy.Proxy, error)) {
		proxyFac = fac
	}(proxyFac)

	proxyFac = func(string) (proxy.Proxy, error) {
		return nil, xerrors.New("oops")
	}

	err := NewController().OnStart(fakeFlags{AddrFlag: "127.0.0.1:0"}, node.NewInjector())
	require.EqualError(t, err, "failed to create proxy: oops")
}

// -----------------------------------------------------------------------------
// Utility functions

// fakeBuilder is a fake builders
//
// - implements node.Builder
type fakeBuilder struct {
	startFlags []cli.Flag
}

// SetCommand implements node.Builder
func (f fakeBuilder) SetCommand(name string) cli.CommandBuilder {
	return nil
}

// SetStartFlags implements node.Builder
func (f *fakeBuilder) SetStartFlags(flags ...cli.Flag) {
	f.startFlags = append(f.startFlags, flags...)
}

// fakeFlags is a fake flags
//
// - implements cli.Flags
type fakeFlags map[string]string

func (f fakeFlags) String(name string) string {
	return f[name]
}

func (f fakeFlags) StringSlice(string) []string { return nil }

func (f fakeFlags) Duration(string) time.Duration { return 0 }

func (f fakeFlags) Path(name string) string { return f[name] }

func (f fakeFlags) Int(string) int { return 0 }

func (f fakeFlags) Uint64(string) uint64 { return 0 }

func (f fakeFlags) Bool(string) bool { return false }

func (f fakeFlags) IsSet(name string) bool {
	_, found := f[name]
	return found
}
