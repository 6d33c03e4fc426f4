package file

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"filippo.io/age"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ChecksumError is returned when a score does not match its configured checksum.
type ChecksumError struct {
	Name string
	Got  string
	Want string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("mismatching checksum of %v: got %v, want %v", e.Name, e.Got, e.Want)
}

// ReadScore reads a standard MIDI file. The checksum, if given, is of the file
// as stored. Names ending in .age are decrypted with passphrase first.
func ReadScore(fsys fs.FS, name string, wantSHA256 string, passphrase string) (*smf.SMF, error) {
	inBytes, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("could not read %v: %w", name, err)
	}

	sum := fmt.Sprintf("%x", sha256.Sum256(inBytes))
	if wantSHA256 != "" && !strings.EqualFold(wantSHA256, sum) {
		return nil, &ChecksumError{Name: name, Got: sum, Want: wantSHA256}
	}

	if strings.HasSuffix(name, ".age") {
		inBytes, err = decrypt(inBytes, passphrase)
		if err != nil {
			return nil, fmt.Errorf("could not decrypt %v: %w", name, err)
		}
	}

	in, err := smf.ReadFrom(bytes.NewReader(inBytes))
	if err != nil {
		return nil, fmt.Errorf("could not parse %v: %w", name, err)
	}
	return in, nil
}

func decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("no passphrase given")
	}
	id, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("could not build scrypt identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), id)
	if err != nil {
		return nil, fmt.Errorf("could not start decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not finish decrypting: %w", err)
	}
	return plaintext, nil
}
