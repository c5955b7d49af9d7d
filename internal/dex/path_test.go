package dex

import (
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeDecodePath(t *testing.T) {
	tokenA := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tokenC := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	path, err := EncodePath([]common.Address{tokenA, tokenB, tokenC}, []uint32{3000, 500})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(path) != 66 {
		t.Fatalf("path length: want 66, got %d", len(path))
	}
	if path[20] != 0x00 || path[21] != 0x0b || path[22] != 0xb8 {
		t.Fatalf("fee bytes mismatch: %x", path[20:23])
	}

	hops, err := DecodePath(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Hop{
		{TokenIn: tokenA, TokenOut: tokenB, Fee: 3000},
		{TokenIn: tokenB, TokenOut: tokenC, Fee: 500},
	}
	if !reflect.DeepEqual(hops, want) {
		t.Fatalf("hops mismatch: %+v != %+v", hops, want)
	}
}

func TestEncodePathInvalid(t *testing.T) {
	token := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if _, err := EncodePath([]common.Address{token}, nil); err == nil {
		t.Fatalf("expected error for single token")
	}
	if _, err := EncodePath([]common.Address{token, token}, []uint32{1 << 24}); err == nil {
		t.Fatalf("expected error for fee overflow")
	}
	if _, err := DecodePath(make([]byte, 30)); err == nil {
		t.Fatalf("expected error for truncated path")
	}
}
