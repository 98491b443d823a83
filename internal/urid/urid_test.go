package urid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapUnmapRoundTrip(t *testing.T) {
	tbl := New()
	id := tbl.Map("http://example.org/custom#thing")
	require.GreaterOrEqual(t, uint32(id), uint32(firstDynamicURID))
	require.Equal(t, "http://example.org/custom#thing", tbl.Unmap(id))
}

func TestUnmapUnknownReturnsEmpty(t *testing.T) {
	tbl := New()
	require.Equal(t, "", tbl.Unmap(URID(999999)))
}

func TestStaticPrefixStable(t *testing.T) {
	tbl := New()
	for i, uri := range staticPrefix {
		require.Equal(t, URID(i+1), tbl.Map(uri))
	}
}

func TestMapIsIdempotent(t *testing.T) {
	tbl := New()
	a := tbl.Map("http://example.org/x")
	b := tbl.Map("http://example.org/x")
	require.Equal(t, a, b)
}

func TestProxyDelegatesUnknown(t *testing.T) {
	var seen string
	proxy := NewProxy(func(uri string) URID {
		seen = uri
		return 4242
	})
	id := proxy.Map("http://example.org/remote-only")
	require.Equal(t, URID(4242), id)
	require.Equal(t, "http://example.org/remote-only", seen)
	require.Equal(t, "http://example.org/remote-only", proxy.Unmap(4242))
}

func TestProxyUsesStaticPrefixWithoutDelegating(t *testing.T) {
	called := false
	proxy := NewProxy(func(uri string) URID {
		called = true
		return 1
	})
	proxy.Map(staticPrefix[0])
	require.False(t, called)
}
