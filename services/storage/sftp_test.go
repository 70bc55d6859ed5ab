package storagesvc

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/trezcool/chuo/core"
)

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestNewSFTPStorage_hostKeys(t *testing.T) {
	conf := core.StorageConfig{Driver: "sftp", Root: "/uploads", SFTPHost: "files.chuo.ac", SFTPUser: "chuo", SFTPPassword: "pwd"}

	_, err := NewSFTPStorage(conf)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "known_hosts")
	}

	conf.SFTPKnownHosts = filepath.Join(t.TempDir(), "missing")
	_, err = NewSFTPStorage(conf)
	assert.Error(t, err)

	serverKey := newHostKey(t)
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{"files.chuo.ac"}, serverKey) + "\n"
	require.NoError(t, os.WriteFile(knownHosts, []byte(line), 0o600))
	conf.SFTPKnownHosts = knownHosts

	s, err := NewSFTPStorage(conf)
	require.NoError(t, err)
	assert.Equal(t, "files.chuo.ac:22", s.addr)

	remote := &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 22}
	assert.NoError(t, s.sshCfg.HostKeyCallback(s.addr, remote, serverKey))
	assert.Error(t, s.sshCfg.HostKeyCallback(s.addr, remote, newHostKey(t)), "an unknown key is refused")

	conf.SFTPKnownHosts = ""
	conf.SFTPInsecureIgnoreHostKey = true
	s, err = NewSFTPStorage(conf)
	require.NoError(t, err)
	assert.NoError(t, s.sshCfg.HostKeyCallback(s.addr, remote, newHostKey(t)))
}
