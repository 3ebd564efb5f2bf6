package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

const (
	sampleRate    = 22050
	bitsPerSample = 16
	amplitude     = 0.4
)

type tone struct {
	frequency float64
	duration  time.Duration
}

var cueTones = map[Cue]tone{
	CueStart:     {frequency: 880, duration: 300 * time.Millisecond},
	CueEnd:       {frequency: 660, duration: 500 * time.Millisecond},
	CueCountdown: {frequency: 1000, duration: 120 * time.Millisecond},
	CueWarning:   {frequency: 740, duration: 250 * time.Millisecond},
	CueZoneExit:  {frequency: 440, duration: 400 * time.Millisecond},
}

// Synthesize renders the cue's tone as a mono 16-bit PCM WAV file.
func Synthesize(cue Cue) []byte {
	t, ok := cueTones[cue]
	if !ok {
		t = tone{frequency: 600, duration: 200 * time.Millisecond}
	}
	return sineWAV(t.frequency, t.duration)
}

func sineWAV(frequency float64, d time.Duration) []byte {
	samples := int(d.Seconds() * sampleRate)
	fade := sampleRate / 100 // 10ms ramps avoid clicks
	dataSize := samples * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))                        // fmt chunk size
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))                         // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))                         // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))                // sample rate
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*bitsPerSample/8)) // byte rate
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample/8))           // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for i := 0; i < samples; i++ {
		gain := amplitude
		if i < fade {
			gain *= float64(i) / float64(fade)
		} else if samples-i < fade {
			gain *= float64(samples-i) / float64(fade)
		}
		v := math.Sin(2*math.Pi*frequency*float64(i)/sampleRate) * gain
		_ = binary.Write(&buf, binary.LittleEndian, int16(v*math.MaxInt16))
	}
	return buf.Bytes()
}
