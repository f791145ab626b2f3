package weld

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"shanhu.io/misc/errcode"
)

// actionFingerprint captures everything that determines the result of one
// rule execution: the command actually dispatched, the rule's declared
// inputs and tools, the stats of its plain-file inputs, and the digests of
// its resolved dependencies.
type actionFingerprint struct {
	Rule    string `json:",omitempty"`
	Command string `json:",omitempty"`
	Ins     []string
	Tools   []string          `json:",omitempty"`
	Files   []*fileStat       `json:",omitempty"`
	Deps    map[string]string `json:",omitempty"`
}

// fileStat pins down a source file's identity for fingerprinting. A
// changed size, mtime or mode changes the action digest, so a cached
// result never replays over edited inputs.
type fileStat struct {
	Name         string
	Size         int64  `json:",omitempty"`
	ModTimestamp int64  `json:",omitempty"`
	Mode         uint32 `json:",omitempty"`
}

// newFileStat stats a source file under the source directory. A missing
// file yields a name-only stat; whether the file is required is the
// action's business, not the fingerprint's.
func newFileStat(dir, name string) (*fileStat, error) {
	info, err := os.Lstat(srcPath(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return &fileStat{Name: name}, nil
		}
		return nil, err
	}
	return &fileStat{
		Name:         name,
		Size:         info.Size(),
		ModTimestamp: info.ModTime().UnixNano(),
		Mode:         uint32(info.Mode()),
	}, nil
}

func makeDigest(t, name string, v interface{}) (string, error) {
	buf := new(bytes.Buffer)
	fmt.Fprintln(buf, t)
	fmt.Fprintln(buf, name)
	bs, err := json.Marshal(v)
	if err != nil {
		return "", errcode.Annotate(err, "json marshal")
	}
	buf.Write(bs)
	sum := sha256.Sum256(buf.Bytes())
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
