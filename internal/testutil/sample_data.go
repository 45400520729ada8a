// Package testutil provides test utilities: seeded generation of DLNA HEAD
// responses and a loopback media server that answers them.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Standard fictional server products for test data.
// NEVER use real vendor or product names.
var (
	ServerProducts = []string{
		"StreamCast/2.1",
		"ViewMedia/1.0",
		"AeroVision/3.4",
		"HomeShare/0.9",
		"NetTuner/5.0",
	}

	// Profiles are DLNA media format profiles with a matching MIME type.
	Profiles = []SampleProfile{
		{Name: "MPEG_PS_NTSC", MIME: "video/mpeg"},
		{Name: "MPEG_TS_HD_NA", MIME: "video/vnd.dlna.mpeg-tts"},
		{Name: "AVC_MP4_BL_CIF15_AAC_520", MIME: "video/mp4"},
		{Name: "MP3", MIME: "audio/mpeg"},
		{Name: "LPCM", MIME: "audio/L16"},
	}

	// PlayspeedSets are advertised trick-play rate lists.
	PlayspeedSets = [][]string{
		nil,
		{"2", "-2"},
		{"-16", "-8", "-4", "-2", "-1", "1/2", "2", "4", "8", "16"},
		{"1/3", "1/2", "3/2", "2"},
	}

	// DTCPHosts are key exchange endpoints for link-protected content.
	DTCPHosts = []string{"192.168.1.20", "10.0.0.5", "172.16.4.9"}
)

// DLNA flag bits set by the generator.
const (
	flagStreamingMode   = 1 << 24
	flagBackgroundMode  = 1 << 22
	flagConnectionStall = 1 << 21
	flagDLNAV15         = 1 << 20
	flagLinkProtected   = 1 << 16
	reservedFlagDigits  = "000000000000000000000000"
)

// SampleProfile pairs a DLNA profile with its MIME type.
type SampleProfile struct {
	Name string
	MIME string
}

// SampleResource describes one media resource as a server would report it.
type SampleResource struct {
	Status        int
	Server        string
	Profile       SampleProfile
	TimeSeek      bool
	ByteSeek      bool
	Duration      time.Duration
	Size          uint64
	Playspeeds    []string
	LinkProtected bool
	DTCPHost      string
	DTCPPort      int
}

// Flags returns the primary DLNA.ORG_FLAGS value for the resource.
func (r SampleResource) Flags() uint32 {
	flags := uint32(flagStreamingMode | flagBackgroundMode | flagConnectionStall | flagDLNAV15)
	if r.LinkProtected {
		flags |= flagLinkProtected
	}
	return flags
}

// Operations returns the DLNA.ORG_OP code.
func (r SampleResource) Operations() string {
	op := []byte("00")
	if r.TimeSeek {
		op[0] = '1'
	}
	if r.ByteSeek {
		op[1] = '1'
	}
	return string(op)
}

// ContentFeatures returns the contentFeatures.dlna.org value.
func (r SampleResource) ContentFeatures() string {
	parts := []string{
		"DLNA.ORG_PN=" + r.Profile.Name,
		"DLNA.ORG_OP=" + r.Operations(),
	}
	if len(r.Playspeeds) > 0 {
		parts = append(parts, "DLNA.ORG_PS="+strings.Join(r.Playspeeds, ","))
	}
	parts = append(parts, fmt.Sprintf("DLNA.ORG_FLAGS=%08X%s", r.Flags(), reservedFlagDigits))
	return strings.Join(parts, ";")
}

// ContentType returns the Content-Type value, wrapped in DTCP parameters
// for link-protected resources.
func (r SampleResource) ContentType() string {
	if !r.LinkProtected {
		return r.Profile.MIME
	}
	return fmt.Sprintf("application/x-dtcp1;DTCP1HOST=%s;DTCP1PORT=%d;CONTENTFORMAT=%s",
		r.DTCPHost, r.DTCPPort, r.Profile.MIME)
}

// Response renders the HEAD response for a seek starting at startNPT.
func (r SampleResource) Response(startNPT time.Duration) string {
	status := r.Status
	if status == 0 {
		status = 200
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP/1.1 %d %s\r\n", status, statusText(status))
	if r.Server != "" {
		fmt.Fprintf(&sb, "Server: %s\r\n", r.Server)
	}
	fmt.Fprintf(&sb, "Content-Type: %s\r\n", r.ContentType())
	fmt.Fprintf(&sb, "Content-Length: %d\r\n", r.Size)
	if !r.ByteSeek {
		sb.WriteString("Accept-Ranges: none\r\n")
	}
	if r.TimeSeek || r.ByteSeek {
		fmt.Fprintf(&sb, "TimeSeekRange.dlna.org: %s\r\n", r.SeekRange(startNPT))
	}
	fmt.Fprintf(&sb, "contentFeatures.dlna.org: %s\r\n", r.ContentFeatures())
	sb.WriteString("transferMode.dlna.org: Streaming\r\n")
	sb.WriteString("\r\n")
	return sb.String()
}

// SeekRange renders the TimeSeekRange value for a seek starting at
// startNPT. The byte range starts at the proportional offset.
func (r SampleResource) SeekRange(startNPT time.Duration) string {
	if startNPT > r.Duration {
		startNPT = r.Duration
	}
	var startByte uint64
	if r.Duration > 0 {
		startByte = uint64(float64(r.Size) * float64(startNPT) / float64(r.Duration))
	}
	lastByte := uint64(0)
	if r.Size > 0 {
		lastByte = r.Size - 1
	}
	if startByte > lastByte {
		startByte = lastByte
	}

	var parts []string
	if r.TimeSeek {
		parts = append(parts, fmt.Sprintf("npt=%s-%s/%s", seconds(startNPT), seconds(r.Duration), seconds(r.Duration)))
	}
	if r.ByteSeek {
		parts = append(parts, fmt.Sprintf("bytes=%d-%d/%d", startByte, lastByte, r.Size))
	}
	return strings.Join(parts, " ")
}

// StartForByte returns the NPT position matching a byte offset.
func (r SampleResource) StartForByte(offset uint64) time.Duration {
	if r.Size == 0 {
		return 0
	}
	d := time.Duration(float64(r.Duration) * float64(offset) / float64(r.Size))
	return d.Truncate(time.Millisecond)
}

func seconds(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 404:
		return "Not Found"
	case 406:
		return "Not Acceptable"
	case 500:
		return "Internal Server Error"
	default:
		return "Status"
	}
}

// SampleDataGenerator generates random sample resources.
type SampleDataGenerator struct {
	rng *rand.Rand
}

// NewSampleDataGenerator creates a new generator with a random seed.
func NewSampleDataGenerator() *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewSampleDataGeneratorWithSeed creates a new generator with a specific seed for reproducibility.
func NewSampleDataGeneratorWithSeed(seed int64) *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// RandomServer returns a random fictional server product.
func (g *SampleDataGenerator) RandomServer() string {
	return ServerProducts[g.rng.Intn(len(ServerProducts))]
}

// RandomProfile returns a random media profile.
func (g *SampleDataGenerator) RandomProfile() SampleProfile {
	return Profiles[g.rng.Intn(len(Profiles))]
}

// RandomPlayspeeds returns a random playspeed list, possibly empty.
func (g *SampleDataGenerator) RandomPlayspeeds() []string {
	set := PlayspeedSets[g.rng.Intn(len(PlayspeedSets))]
	if set == nil {
		return nil
	}
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// GenerateOptions configures resource generation.
type GenerateOptions struct {
	// LinkProtectedRatio is the fraction of resources that are DTCP protected.
	LinkProtectedRatio float64
	// MaxDuration bounds the generated durations.
	MaxDuration time.Duration
}

// DefaultGenerateOptions returns sensible defaults for resource generation.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		LinkProtectedRatio: 0.25,
		MaxDuration:        3 * time.Hour,
	}
}

// GenerateResource generates one resource with a successful status.
func (g *SampleDataGenerator) GenerateResource(opts GenerateOptions) SampleResource {
	maxMillis := opts.MaxDuration.Milliseconds()
	if maxMillis < 1000 {
		maxMillis = 1000
	}

	r := SampleResource{
		Status:     200,
		Server:     g.RandomServer(),
		Profile:    g.RandomProfile(),
		TimeSeek:   g.rng.Intn(2) == 1,
		ByteSeek:   g.rng.Intn(4) != 0,
		Duration:   time.Duration(1000+g.rng.Int63n(maxMillis)) * time.Millisecond,
		Size:       uint64(1024 + g.rng.Int63n(8<<30)),
		Playspeeds: g.RandomPlayspeeds(),
	}

	if g.rng.Float64() < opts.LinkProtectedRatio {
		r.LinkProtected = true
		r.DTCPHost = DTCPHosts[g.rng.Intn(len(DTCPHosts))]
		r.DTCPPort = 5000 + g.rng.Intn(5000)
	}
	return r
}

// GenerateResources generates count resources.
func (g *SampleDataGenerator) GenerateResources(count int, opts GenerateOptions) []SampleResource {
	resources := make([]SampleResource, count)
	for i := range resources {
		resources[i] = g.GenerateResource(opts)
	}
	return resources
}
