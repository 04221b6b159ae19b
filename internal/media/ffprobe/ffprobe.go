package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrUnusable marks input that ffprobe parsed but that cannot feed a render.
var ErrUnusable = errors.New("unusable media")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Duration     string            `json:"duration"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Tags         map[string]string `json:"tags"`
	SideDataList []SideData        `json:"side_data_list"`
}

// SideData carries per-stream side data; only display-matrix rotation is read.
type SideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// AudioInfo is what a render needs to know about the audio input.
type AudioInfo struct {
	Codec      string
	Duration   float64
	SampleRate int
	Channels   int
}

// ImageInfo is the displayed size of the still image.
type ImageInfo struct {
	Codec  string
	Width  int
	Height int
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return Result{}, fmt.Errorf("ffprobe inspect %s: %w: %s", path, err, detail)
	}
	return Parse(output)
}

// Parse decodes raw ffprobe JSON.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), data...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// FirstStream returns the first stream of the given codec type.
func (r Result) FirstStream(codecType string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration, falling back to the first
// audio stream's duration. Returns 0 when neither is known.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	if stream, ok := r.FirstStream("audio"); ok {
		if d := parseFloat(stream.Duration); d > 0 {
			return d
		}
	}
	return 0
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if size <= 0 {
		return 0
	}
	return int64(size)
}

// Audio reports the audio facts, failing when there is no audio stream or no
// positive finite duration.
func (r Result) Audio() (AudioInfo, error) {
	stream, ok := r.FirstStream("audio")
	if !ok {
		return AudioInfo{}, fmt.Errorf("%w: no audio stream", ErrUnusable)
	}
	duration := r.DurationSeconds()
	if duration <= 0 {
		return AudioInfo{}, fmt.Errorf("%w: audio duration unknown", ErrUnusable)
	}
	rate, _ := strconv.Atoi(strings.TrimSpace(stream.SampleRate))
	return AudioInfo{
		Codec:      stream.CodecName,
		Duration:   duration,
		SampleRate: rate,
		Channels:   stream.Channels,
	}, nil
}

// Image reports the displayed dimensions of the first video stream. A quarter
// turn of rotation metadata swaps width and height.
func (r Result) Image() (ImageInfo, error) {
	stream, ok := r.FirstStream("video")
	if !ok {
		return ImageInfo{}, fmt.Errorf("%w: no image stream", ErrUnusable)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("%w: image dimensions %dx%d", ErrUnusable, stream.Width, stream.Height)
	}
	info := ImageInfo{Codec: stream.CodecName, Width: stream.Width, Height: stream.Height}
	if quarterTurn(stream.rotation()) {
		info.Width, info.Height = info.Height, info.Width
	}
	return info, nil
}

func (s Stream) rotation() float64 {
	for _, side := range s.SideDataList {
		if strings.EqualFold(side.SideDataType, "Display Matrix") && side.Rotation != 0 {
			return side.Rotation
		}
	}
	if v, ok := s.Tags["rotate"]; ok {
		return parseFloat(v)
	}
	return 0
}

func quarterTurn(deg float64) bool {
	if math.IsNaN(deg) {
		return false
	}
	turns := int(math.Round(deg/90)) % 4
	return turns == 1 || turns == -1 || turns == 3 || turns == -3
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}
