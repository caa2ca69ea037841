package minogrpc

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/odo/mino/minogrpc/ptypes"
)

func TestServiceDescs_MatchProtoFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("ptypes", ptypes.ProtoFile))
	require.NoError(t, err)

	proto := string(data)

	descs := serviceDescs()
	require.Len(t, descs, 4)

	for _, desc := range descs {
		require.Equal(t, ptypes.ProtoFile, desc.Metadata)

		service := regexp.MustCompile(`\.(\w+)$`).FindStringSubmatch(desc.ServiceName)
		require.Len(t, service, 2)
		require.Contains(t, proto, "service "+service[1]+" {")

		for _, method := range desc.Methods {
			require.Regexp(t, `rpc `+method.MethodName+`\(\w+\) returns \(\w+\)`, proto)
		}
	}
}
