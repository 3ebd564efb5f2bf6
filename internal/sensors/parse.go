package sensors

import (
	"fmt"
	"sync"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

// Bluetooth service and characteristic UUIDs of the supported streams.
const (
	ServiceUUIDHeartRate         = "0000180d-0000-1000-8000-00805f9b34fb"
	CharUUIDHeartRateMeasurement = "00002a37-0000-1000-8000-00805f9b34fb"

	ServiceUUIDCyclingSpeedCadence = "00001816-0000-1000-8000-00805f9b34fb"
	CharUUIDCSCMeasurement         = "00002a5b-0000-1000-8000-00805f9b34fb"

	ServiceUUIDCyclingPower         = "00001818-0000-1000-8000-00805f9b34fb"
	CharUUIDCyclingPowerMeasurement = "00002a63-0000-1000-8000-00805f9b34fb"
)

// Stream identifies a notify characteristic and how to decode it.
type Stream string

const (
	StreamHeartRate    Stream = "heart_rate"
	StreamCyclingPower Stream = "cycling_power"
	StreamCadence      Stream = "cadence"
)

type streamInfo struct {
	service        string
	characteristic string
}

var streams = map[Stream]streamInfo{
	StreamHeartRate:    {service: ServiceUUIDHeartRate, characteristic: CharUUIDHeartRateMeasurement},
	StreamCyclingPower: {service: ServiceUUIDCyclingPower, characteristic: CharUUIDCyclingPowerMeasurement},
	StreamCadence:      {service: ServiceUUIDCyclingSpeedCadence, characteristic: CharUUIDCSCMeasurement},
}

// Values is a partial set of live metric values decoded from one notification.
type Values map[workout.MetricName]float64

// ParseHeartRate decodes a Heart Rate Measurement notification.
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
func ParseHeartRate(buf []byte) (Values, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("heart rate data too short: %d bytes", len(buf))
	}

	// Bit 0 of the flags: 0 = UINT8, 1 = UINT16
	var heartRate uint16
	if buf[0]&0x01 != 0 {
		if len(buf) < 3 {
			return nil, fmt.Errorf("heart rate UINT16 data too short: %d bytes", len(buf))
		}
		heartRate = uint16(buf[1]) | uint16(buf[2])<<8
	} else {
		heartRate = uint16(buf[1])
	}
	return Values{workout.MetricHeartRate: float64(heartRate)}, nil
}

// ParseCyclingPower decodes a Cycling Power Measurement notification.
// See: https://www.bluetooth.com/specifications/specs/cycling-power-service-1-1/
func ParseCyclingPower(buf []byte) (Values, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("cycling power data too short: %d bytes", len(buf))
	}
	// Bytes 2-3: Instantaneous Power (SINT16, watts)
	power := int16(uint16(buf[2]) | uint16(buf[3])<<8)
	return Values{workout.MetricWatts: float64(power)}, nil
}

// CadenceDecoder turns cumulative crank revolutions from CSC Measurement
// notifications into rpm. It needs two readings before it reports anything.
type CadenceDecoder struct {
	mu          sync.Mutex
	lastRevs    uint16
	lastEvent   uint16
	hasPrevious bool
}

// Parse decodes one CSC Measurement notification. A nil result without error
// means there is no cadence to report yet.
// See: https://www.bluetooth.com/specifications/specs/cycling-speed-and-cadence-service-1-0/
func (d *CadenceDecoder) Parse(buf []byte) (Values, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("CSC data too short: %d bytes", len(buf))
	}

	flags := buf[0]
	offset := 1
	if flags&0x01 != 0 {
		// wheel revolutions (4 bytes) + wheel event time (2 bytes)
		offset += 6
	}
	if flags&0x02 == 0 {
		return nil, nil
	}
	if offset+4 > len(buf) {
		return nil, fmt.Errorf("CSC data too short for crank data at offset %d", offset)
	}

	revs := uint16(buf[offset]) | uint16(buf[offset+1])<<8
	event := uint16(buf[offset+2]) | uint16(buf[offset+3])<<8 // 1/1024 s

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasPrevious {
		d.lastRevs, d.lastEvent, d.hasPrevious = revs, event, true
		return nil, nil
	}

	// uint16 subtraction handles rollover
	revDiff := revs - d.lastRevs
	timeDiff := event - d.lastEvent
	d.lastRevs, d.lastEvent = revs, event

	if timeDiff == 0 {
		return nil, nil
	}
	rpm := float64(revDiff) * 60 * 1024 / float64(timeDiff)
	if rpm > 300 {
		return nil, nil
	}
	return Values{workout.MetricRPM: rpm}, nil
}
