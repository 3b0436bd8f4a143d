package pkg

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

const roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	peerCodeMin = 1000
	peerCodeMax = 9999
)

// GenerateParticipantID - generates an opaque identity for a connection.
func GenerateParticipantID() string {
	return uuid.NewString()
}

// GenerateChannelID - generates an id for a virtual channel on the broker.
func GenerateChannelID() string {
	return "ch-" + uuid.NewString()
}

// GenerateRoomCode - upper-case alphanumeric code for relay rooms.
func GenerateRoomCode(length int) string {
	code := make([]byte, length)
	for i := range code {
		code[i] = roomCodeCharset[randomInt(len(roomCodeCharset))]
	}
	return string(code)
}

// GeneratePeerCode - four digit code a host shares with joiners.
func GeneratePeerCode() string {
	return strconv.Itoa(peerCodeMin + randomInt(peerCodeMax-peerCodeMin+1))
}

func randomInt(upper int) int {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(upper)))
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return int(num.Int64())
}
