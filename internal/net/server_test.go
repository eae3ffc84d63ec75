package net

import (
	"context"
	stdnet "net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/net/packet"
)

func testNetConfig() config.NetworkConfig {
	return config.NetworkConfig{
		OutQueueSize: 64,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxFrameSize: 8192,
	}
}

func testRateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:          true,
		PacketsPerSecond: 100,
		UnknownPerMinute: 2,
	}
}

// startServer binds an ephemeral port and returns a dialable address.
func startServer(t *testing.T, reg *packet.Registry, rate config.RateLimitConfig) (*Server, string, context.CancelFunc) {
	t.Helper()
	srv := NewServer("test", "127.0.0.1:0", reg, testNetConfig(), rate, zaptest.NewLogger(t))
	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	return srv, srv.ln.Addr().String(), cancel
}

func TestServerDispatchesFrames(t *testing.T) {
	reg := packet.NewRegistry(zaptest.NewLogger(t))
	var gotByte atomic.Int32
	done := make(chan struct{})
	reg.Register(packet.ClientKeepAlive, []packet.SessionState{packet.StateFresh}, func(sess any, r *packet.Reader) {
		gotByte.Store(int32(r.ReadByte()))
		close(done)
	})

	_, addr, cancel := startServer(t, reg, testRateConfig())
	defer cancel()

	client, err := stdnet.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(EncodeFrame(uint16(packet.ClientKeepAlive), []byte{0x5A}))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	assert.Equal(t, int32(0x5A), gotByte.Load())
}

func TestServerEchoThroughSendPacket(t *testing.T) {
	reg := packet.NewRegistry(zaptest.NewLogger(t))
	reg.Register(packet.ClientKeepAlive, []packet.SessionState{packet.StateFresh}, func(sess any, r *packet.Reader) {
		c := sess.(*Connection)
		c.SendPacket(uint16(packet.ClientKeepAlive), []byte{1, 2, 3})
	})

	_, addr, cancel := startServer(t, reg, testRateConfig())
	defer cancel()

	client, err := stdnet.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(EncodeFrame(uint16(packet.ClientKeepAlive), nil))
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)

	frames, rest, err := DecodeFrames(buf[:n], 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Empty(t, rest)
	assert.Equal(t, uint16(packet.ClientKeepAlive), frames[0].Opcode)
	assert.Equal(t, []byte{1, 2, 3}, frames[0].Payload)
}

func TestServerSplitFrameAcrossWrites(t *testing.T) {
	reg := packet.NewRegistry(zaptest.NewLogger(t))
	done := make(chan struct{})
	reg.Register(packet.ClientKeepAlive, []packet.SessionState{packet.StateFresh}, func(sess any, r *packet.Reader) {
		close(done)
	})

	_, addr, cancel := startServer(t, reg, testRateConfig())
	defer cancel()

	client, err := stdnet.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	wire := EncodeFrame(uint16(packet.ClientKeepAlive), []byte("trickled"))
	_, err = client.Write(wire[:3])
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = client.Write(wire[3:])
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("split frame never dispatched")
	}
}

func TestServerUnknownOpcodeStrikesThenDisconnects(t *testing.T) {
	reg := packet.NewRegistry(zaptest.NewLogger(t))
	_, addr, cancel := startServer(t, reg, testRateConfig()) // UnknownPerMinute: 2
	defer cancel()

	client, err := stdnet.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	// Two strikes are tolerated, the third crosses the threshold.
	for i := 0; i < 3; i++ {
		_, err = client.Write(EncodeFrame(0x7777, nil))
		require.NoError(t, err)
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = client.Read(make([]byte, 1))
	assert.Error(t, err, "server should close the connection")
}

func TestServerEncryptedRoundTrip(t *testing.T) {
	key := testKey("0123456789abcdef")
	reg := packet.NewRegistry(zaptest.NewLogger(t))
	reg.Register(packet.ClientHelloWorld, []packet.SessionState{packet.StateFresh}, func(sess any, r *packet.Reader) {
		c := sess.(*Connection)
		c.EnableEncryption(key)
		c.SendPacket(uint16(packet.ServerHelloWorld), []byte("secret"))
	})
	done := make(chan []byte, 1)
	reg.Register(packet.ClientKeepAlive, []packet.SessionState{packet.StateFresh}, func(sess any, r *packet.Reader) {
		done <- r.ReadBytes(4)
	})

	_, addr, cancel := startServer(t, reg, testRateConfig())
	defer cancel()

	client, err := stdnet.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	// Plaintext hello arms the cipher server-side.
	_, err = client.Write(EncodeFrame(uint16(packet.ClientHelloWorld), nil))
	require.NoError(t, err)

	// The reply arrives encrypted.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)

	recv := NewCipher(key)
	frames, _, err := DecodeFrames(recv.Apply(buf[:n]), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("secret"), frames[0].Payload)

	// And the server decrypts what we send from here on.
	send := NewCipher(key)
	_, err = client.Write(send.Apply(EncodeFrame(uint16(packet.ClientKeepAlive), []byte{9, 8, 7, 6})))
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, []byte{9, 8, 7, 6}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("encrypted frame never dispatched")
	}
}

func TestServerConcurrentSendsKeepCipherStreamOrdered(t *testing.T) {
	const senders, perSender = 4, 15
	key := testKey("0123456789abcdef")

	reg := packet.NewRegistry(zaptest.NewLogger(t))
	reg.Register(packet.ClientHelloWorld, []packet.SessionState{packet.StateFresh}, func(sess any, r *packet.Reader) {
		c := sess.(*Connection)
		c.EnableEncryption(key)
		// Hammer the connection from several goroutines at once, the way a
		// zone broadcast and a whisper route can collide on one recipient.
		for g := 0; g < senders; g++ {
			go func() {
				for i := 0; i < perSender; i++ {
					c.SendPacket(uint16(packet.ServerChat), []byte{0xAB, 1, 2, 3, 4, 5, 6, 7})
				}
			}()
		}
	})

	_, addr, cancel := startServer(t, reg, testRateConfig())
	defer cancel()

	client, err := stdnet.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(EncodeFrame(uint16(packet.ClientHelloWorld), nil))
	require.NoError(t, err)

	// Every frame must decrypt cleanly against one mirrored stream: a frame
	// enqueued out of keystream order shows up here as a malformed frame or
	// a corrupted payload.
	recv := NewCipher(key)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	var buf []byte
	chunk := make([]byte, 4096)
	got := 0
	for got < senders*perSender {
		n, err := client.Read(chunk)
		require.NoError(t, err)
		buf = append(buf, recv.Apply(chunk[:n])...)

		frames, rest, err := DecodeFrames(buf, 0)
		require.NoError(t, err, "cipher stream desynced from wire order")
		for _, f := range frames {
			require.Equal(t, uint16(packet.ServerChat), f.Opcode)
			require.Equal(t, []byte{0xAB, 1, 2, 3, 4, 5, 6, 7}, f.Payload)
		}
		got += len(frames)
		buf = append(buf[:0], rest...)
	}
}
