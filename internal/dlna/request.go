package dlna

import (
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/dlnaprobe/pkg/npt"
)

const crlf = "\r\n"

// HeadRequest carries the inputs of a HEAD request.
type HeadRequest struct {
	// Target is the request-target, normally the path and query of the URI.
	Target string
	Host   string
	Port   int
	// StartNPT is sent as the seek hint unless StartByte is non-zero.
	StartNPT  time.Duration
	StartByte uint64
}

// BuildHeadRequest formats the HEAD request text. It always asks for the
// content features and the available seek range, and carries a
// TimeSeekRange hint: bytes when StartByte is non-zero, NPT otherwise.
func BuildHeadRequest(r HeadRequest) string {
	target := r.Target
	if target == "" {
		target = "/"
	}

	var sb strings.Builder
	sb.WriteString("HEAD " + target + " HTTP/1.1" + crlf)
	sb.WriteString("HOST: " + r.Host + ":" + strconv.Itoa(r.Port) + crlf)
	sb.WriteString("getcontentFeatures.dlna.org : 1" + crlf)
	sb.WriteString("getAvailableSeekRange.dlna.org : 1" + crlf)
	if r.StartByte != 0 {
		sb.WriteString("TimeSeekRange.dlna.org : bytes=" + strconv.FormatUint(r.StartByte, 10) + "-" + crlf)
	} else {
		sb.WriteString("TimeSeekRange.dlna.org : npt=" + npt.FormatSeconds(r.StartNPT) + "-" + crlf)
	}
	sb.WriteString(crlf)
	return sb.String()
}
