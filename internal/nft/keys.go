package nft

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

func (c *Collection) key(parts ...[]byte) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, "nft/"...)
	buf = append(buf, c.name...)
	for _, part := range parts {
		buf = append(buf, '/')
		buf = append(buf, part...)
	}
	return buf
}

func (c *Collection) ownerKey(id uint64) []byte {
	return c.key([]byte("owner"), idBytes(id))
}

func (c *Collection) approvedKey(id uint64) []byte {
	return c.key([]byte("approved"), idBytes(id))
}

func (c *Collection) operatorKey(owner, operator common.Address) []byte {
	return c.key([]byte("operator"), owner.Bytes(), operator.Bytes())
}

func (c *Collection) balanceKey(owner common.Address) []byte {
	return c.key([]byte("balance"), owner.Bytes())
}

func (c *Collection) counterKey() []byte {
	return c.key([]byte("next"))
}

func idBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}
