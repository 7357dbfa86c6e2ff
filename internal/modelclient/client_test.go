package modelclient

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// fakeServer accepts exactly one connection and runs handle on it.
func fakeServer(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer ln.Close()
		handle(conn)
	}()
	return ln.Addr().String()
}

// handshakeThenHandle consumes the ring-mode startup handshake (spec §4.7)
// before running handle on the remainder of the training connection.
func handshakeThenHandle(t *testing.T, wantM uint32, ack int32, handle func(net.Conn)) func(net.Conn) {
	return func(conn net.Conn) {
		var m uint32
		if err := binary.Read(conn, binary.LittleEndian, &m); err != nil {
			return
		}
		if m != wantM {
			t.Errorf("announce sent M=%d, want %d", m, wantM)
		}
		if err := binary.Write(conn, binary.LittleEndian, ack); err != nil {
			return
		}
		handle(conn)
	}
}

func TestOperationRoundTrip(t *testing.T) {
	trainAddr := fakeServer(t, handshakeThenHandle(t, 3, 0, func(conn net.Conn) {
		defer conn.Close()
		var cmd uint32
		if err := binary.Read(conn, binary.LittleEndian, &cmd); err != nil {
			return
		}
		if cmd != 42 {
			t.Errorf("server saw command %d, want 42", cmd)
		}
		binary.Write(conn, binary.LittleEndian, int32(7))
	}))
	predictAddr := fakeServer(t, func(conn net.Conn) { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, trainAddr, predictAddr, 3, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.trainConn.Close()
	defer c.predictConn.Close()

	obs, err := c.Operation(42)
	if err != nil {
		t.Fatalf("Operation: %v", err)
	}
	if obs != 7 {
		t.Errorf("obs_to_wait = %d, want 7", obs)
	}
}

func TestTrainSetsMSB(t *testing.T) {
	trainAddr := fakeServer(t, handshakeThenHandle(t, 100, 0, func(conn net.Conn) {
		defer conn.Close()
		var cmd uint32
		binary.Read(conn, binary.LittleEndian, &cmd)
		if cmd&trainFlagBit == 0 {
			t.Errorf("expected MSB set for Train, command = %#x", cmd)
		}
		binary.Write(conn, binary.LittleEndian, Metrics{PSPowerError: 0.1, PLPowerError: 0.05, TimeError: 0.2})
	}))
	predictAddr := fakeServer(t, func(conn net.Conn) { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, trainAddr, predictAddr, 100, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.trainConn.Close()
	defer c.predictConn.Close()

	m, err := c.Train(100)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.TimeError != 0.2 {
		t.Errorf("TimeError = %v, want 0.2", m.TimeError)
	}
}

func TestPredictRoundTrip(t *testing.T) {
	trainAddr := fakeServer(t, handshakeThenHandle(t, 1, 0, func(conn net.Conn) { conn.Close() }))
	predictAddr := fakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		var f Features
		if err := binary.Read(conn, binary.LittleEndian, &f); err != nil {
			return
		}
		binary.Write(conn, binary.LittleEndian, Prediction{PSPower: 1.5, PLPower: 0.5, Time: 2.5})
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, trainAddr, predictAddr, 1, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.trainConn.Close()
	defer c.predictConn.Close()

	var f Features
	f.Labels[0] = 1
	p, err := c.Predict(f)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if p.Time != 2.5 {
		t.Errorf("Time = %v, want 2.5", p.Time)
	}
}

func TestDialAnnouncesMBeforePredictionSocket(t *testing.T) {
	predictDialed := make(chan struct{}, 1)
	var announcedM uint32

	trainAddr := fakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		if err := binary.Read(conn, binary.LittleEndian, &announcedM); err != nil {
			t.Fatalf("read announce: %v", err)
		}
		select {
		case <-predictDialed:
			t.Error("prediction socket dialed before training handshake completed")
		default:
		}
		binary.Write(conn, binary.LittleEndian, int32(42))
	})
	predictAddr := fakeServer(t, func(conn net.Conn) {
		predictDialed <- struct{}{}
		conn.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, trainAddr, predictAddr, 5, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.trainConn.Close()
	defer c.predictConn.Close()

	if announcedM != 5 {
		t.Errorf("announced M = %d, want 5", announcedM)
	}
}
