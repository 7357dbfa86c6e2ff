// Package modelclient implements C7, the external model-service client.
// The wire protocol — two raw TCP sockets, fixed-width little-endian
// records, a train/test command word with the MSB as a mode flag, a zero
// command as the end-of-session marker — is grounded directly on
// original_source/machsuite_app/src/application/online_models.c, translated
// from raw read()/write() on a Unix-domain TCP socket into Go's net.Conn
// plus encoding/binary. No pack repo offers a reusable fixed-width
// binary-socket-protocol library (the closest analogue, gRPC in
// ALEYI17-InfraSight_gpu, is a wire format this spec does not define), so
// this component is deliberately built on net/encoding/binary rather than a
// third-party RPC layer.
package modelclient

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"fpgasched/internal/kernel"
	"fpgasched/internal/logging"
)

const (
	trainFlagBit uint32 = 1 << 31
	endSession   uint32 = 0
)

// Features is the fixed-width observation vector sent to the prediction
// socket: three floating-point CPU-utilization fields followed by a
// one-hot kernel-label encoding (online_models.h's online_models_features_t,
// sized to DefaultNumLabels; a differently-sized label set changes the
// wire record length and must be renegotiated out of band).
type Features struct {
	User   float32
	Kernel float32
	Idle   float32
	Labels [kernel.DefaultNumLabels]uint8
}

// Prediction is the fixed-width response from the prediction socket
// (spec §6 sockets: "prediction{f32 power(s), f32 time}", the ZCU board
// shape with a split PS/PL power rail).
type Prediction struct {
	PSPower float32
	PLPower float32
	Time    float32
}

// Metrics is the fixed-width response from a train/test command (spec §6:
// "metrics{f32 ps_pow_err, f32 pl_pow_err, f32 time_err}").
type Metrics struct {
	PSPowerError float32
	PLPowerError float32
	TimeError    float32
}

// Client holds the two persistent TCP connections to the external model
// service (spec §4.7): one for training/testing commands, one for
// inference requests.
type Client struct {
	trainConn   net.Conn
	predictConn net.Conn
}

// Dial opens both sockets to the model service (spec §4.7 setup), then
// performs the ring-mode startup handshake on the training socket before the
// prediction socket is even created — announcing measurementsPerTraining
// (M) and blocking for the service's acknowledgment, exactly the order
// online_models_setup's TRACES_RAM branch establishes both sockets in.
// Either address may be a TCP host:port or a Unix-domain socket path
// prefixed with "unix:"; this mirrors the original implementation's use of
// a Unix-domain-backed TCP socket while remaining usable over a real
// network link.
func Dial(ctx context.Context, trainAddr, predictAddr string, measurementsPerTraining uint32, timeout time.Duration) (*Client, error) {
	trainConn, err := dialOne(ctx, trainAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("modelclient: dial training socket: %w", err)
	}

	c := &Client{trainConn: trainConn}
	if err := c.announce(measurementsPerTraining); err != nil {
		trainConn.Close()
		return nil, err
	}

	predictConn, err := dialOne(ctx, predictAddr, timeout)
	if err != nil {
		trainConn.Close()
		return nil, fmt.Errorf("modelclient: dial prediction socket: %w", err)
	}
	c.predictConn = predictConn
	return c, nil
}

// announce performs the ring-mode startup handshake spec §4.7 requires:
// send M on the training stream and wait for the service's acknowledgment
// before any Operation/Train/Test is issued. Grounded on
// online_models_setup's TRACES_RAM branch, which sends num_measurements and
// blocks on recv_data_from_socket_tcp for an ack before proceeding.
func (c *Client) announce(measurementsPerTraining uint32) error {
	if err := writeUint32(c.trainConn, measurementsPerTraining); err != nil {
		return fmt.Errorf("modelclient: send announce: %w", err)
	}
	var ack int32
	if err := binary.Read(c.trainConn, binary.LittleEndian, &ack); err != nil {
		return fmt.Errorf("modelclient: recv announce ack: %w", err)
	}
	return nil
}

func dialOne(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	network := "tcp"
	if len(addr) > 5 && addr[:5] == "unix:" {
		network = "unix"
		addr = addr[5:]
	}
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, network, addr)
}

// Operation signals a training/test decision to the model service and
// returns the number of observations to wait in idle before the next
// window (online_models_operation). The caller (the monitoring engine)
// decides separately whether this was a train or test pass; Operation
// itself only carries the raw measurement count with no mode bit set.
func (c *Client) Operation(numMeasurements uint32) (obsToWait int32, err error) {
	if err := writeUint32(c.trainConn, numMeasurements); err != nil {
		return 0, fmt.Errorf("modelclient: send operation: %w", err)
	}
	var v int32
	if err := binary.Read(c.trainConn, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("modelclient: recv obs_to_wait: %w", err)
	}
	return v, nil
}

// Train commands a training pass over numMeasurements observations and
// returns the model's self-reported error metrics (online_models_train:
// MSB of the command word set).
func (c *Client) Train(numMeasurements uint32) (*Metrics, error) {
	return c.trainOrTest(numMeasurements | trainFlagBit)
}

// Test commands a held-out evaluation pass (online_models_test: MSB
// cleared).
func (c *Client) Test(numMeasurements uint32) (*Metrics, error) {
	return c.trainOrTest(numMeasurements &^ trainFlagBit)
}

func (c *Client) trainOrTest(command uint32) (*Metrics, error) {
	if err := writeUint32(c.trainConn, command); err != nil {
		return nil, fmt.Errorf("modelclient: send train/test command: %w", err)
	}
	var m Metrics
	if err := binary.Read(c.trainConn, binary.LittleEndian, &m); err != nil {
		return nil, fmt.Errorf("modelclient: recv metrics: %w", err)
	}
	return &m, nil
}

// Predict sends one feature vector over the prediction socket and returns
// the model's forecast (online_models_predict).
func (c *Client) Predict(f Features) (*Prediction, error) {
	if err := binary.Write(c.predictConn, binary.LittleEndian, f); err != nil {
		return nil, fmt.Errorf("modelclient: send features: %w", err)
	}
	var p Prediction
	if err := binary.Read(c.predictConn, binary.LittleEndian, &p); err != nil {
		return nil, fmt.Errorf("modelclient: recv prediction: %w", err)
	}
	return &p, nil
}

// Close signals end-of-session on the training socket (the zero-command
// marker, online_models_clean) and closes both connections. Errors from
// the end-of-session write are logged, not returned, since the process is
// shutting down either way.
func (c *Client) Close() error {
	if err := writeUint32(c.trainConn, endSession); err != nil {
		logging.GetLogger().WithError(err).Warn("modelclient: failed to send end-of-session marker")
	}
	trainErr := c.trainConn.Close()
	predictErr := c.predictConn.Close()
	if trainErr != nil {
		return trainErr
	}
	return predictErr
}

func writeUint32(w io.Writer, v uint32) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
		return err
	}
	return bw.Flush()
}
