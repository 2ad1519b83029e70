// Package stream carries sample batches and metrics over NATS or MQTT.
//
// A sample message is a batch of 12-byte little-endian records: a float64
// timestamp in milliseconds followed by a float32 value. Metrics messages
// are JSON.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// RecordSize is the encoded size of one Record.
const RecordSize = 12

// ErrMalformed is returned for payloads that are not a whole number of
// records.
var ErrMalformed = errors.New("stream: malformed sample payload")

// Record is one timestamped sample.
type Record struct {
	TimeMS float64
	Value  float32
}

// AppendRecords appends the encoding of recs to dst.
func AppendRecords(dst []byte, recs ...Record) []byte {
	for _, r := range recs {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(r.TimeMS))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(r.Value))
	}
	return dst
}

// DecodeRecords decodes data into dst, reusing its capacity.
func DecodeRecords(data []byte, dst []Record) ([]Record, error) {
	if len(data)%RecordSize != 0 {
		return dst[:0], fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}

	n := len(data) / RecordSize
	if cap(dst) < n {
		dst = make([]Record, n)
	}
	dst = dst[:n]
	for i := range dst {
		b := data[i*RecordSize:]
		dst[i] = Record{
			TimeMS: math.Float64frombits(binary.LittleEndian.Uint64(b)),
			Value:  math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		}
	}
	return dst, nil
}

// SampleSubject is the NATS subject carrying samples for channel.
func SampleSubject(prefix, channel string) string {
	return prefix + ".samples." + channel
}

// MetricsSubject is the NATS subject carrying metrics for channel.
func MetricsSubject(prefix, channel string) string {
	return prefix + ".metrics." + channel
}

// SampleTopic is the MQTT topic carrying samples for channel.
func SampleTopic(prefix, channel string) string {
	return prefix + "/samples/" + channel
}

// MetricsTopic is the MQTT topic carrying metrics for channel.
func MetricsTopic(prefix, channel string) string {
	return prefix + "/metrics/" + channel
}

// channelFrom extracts the trailing channel token from name when it starts
// with prefix+sep+kind+sep.
func channelFrom(name, prefix, kind, sep string) (string, bool) {
	head := prefix + sep + kind + sep
	if !strings.HasPrefix(name, head) {
		return "", false
	}
	ch := name[len(head):]
	if ch == "" || strings.Contains(ch, sep) {
		return "", false
	}
	return ch, true
}
