package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const (
	defaultKeyLen = 32
	minKeyLen     = 16
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

// Print random key suitable for SECRET_KEY
func run(out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	keyLen := fs.IntP("bytes", "n", defaultKeyLen, "Key length in bytes")
	encoding := fs.StringP("encoding", "e", "hex", "Output encoding (hex, base64)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *keyLen < minKeyLen {
		return fmt.Errorf("key must be at least %d bytes, got %d", minKeyLen, *keyLen)
	}

	var encode func([]byte) string
	switch *encoding {
	case "hex":
		encode = hex.EncodeToString
	case "base64":
		encode = base64.RawURLEncoding.EncodeToString
	default:
		return fmt.Errorf("unknown encoding %q", *encoding)
	}

	b := make([]byte, *keyLen)
	if _, err := rand.Read(b); err != nil {
		return err
	}

	_, err := fmt.Fprintln(out, encode(b))
	return err
}
