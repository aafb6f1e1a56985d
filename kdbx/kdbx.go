package kdbx

import (
	"bytes"
	"crypto/sha256"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kdbxgo/kdbxvault/cipher"
	"github.com/kdbxgo/kdbxvault/compositekey"
	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/kdf"
	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/secmem"
	"github.com/kdbxgo/kdbxvault/stream"
)

// Container is the decoded outer+inner envelope of a KDBX file: enough
// to hand the XML payload bytes to the kdbxxml package and to re-save
// the file with the same parameters.
type Container struct {
	Version        model.FormatVersion
	Outer          *OuterHeader
	Inner          *InnerHeader // nil for v3 (carried in the v3 outer header instead)
	TransformedKey []byte

	// XML is the fully decrypted, decompressed XML payload.
	XML []byte
}

// InnerRandomStreamID and Key, uniformly available for both versions
// (v3 carries them in the outer header, v4 in the inner header).
func (c *Container) InnerStreamID() stream.InnerStreamID {
	if c.Version.IsV4() {
		return c.Inner.InnerRandomStreamID
	}
	return stream.InnerStreamID(c.Outer.InnerRandomStreamID)
}

func (c *Container) InnerStreamKey() []byte {
	if c.Version.IsV4() {
		return c.Inner.InnerRandomStreamKey
	}
	return c.Outer.ProtectedStreamKey
}

// Binaries returns the v4 inner-header binary pool, or nil for v3
// (whose pool lives inside the XML payload instead).
func (c *Container) Binaries() []Binary {
	if c.Version.IsV4() {
		return c.Inner.Binaries
	}
	return nil
}

// Load reads a complete KDBX container from r, deriving the
// transformed key from ck via the outer header's KDF parameters.
func Load(r io.Reader, ck *compositekey.CompositeKey, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	version, err := ReadMagic(r)
	if err != nil {
		return nil, err
	}
	isV4 := version.IsV4()

	outer, rawHeader, err := ReadOuterHeader(r, isV4, logger)
	if err != nil {
		return nil, err
	}

	kdfInstance, err := resolveKDF(outer, isV4)
	if err != nil {
		return nil, err
	}
	transformedKey, err := ck.Transform(kdfInstance)
	if err != nil {
		return nil, err
	}

	if isV4 {
		return loadV4(r, outer, rawHeader, ck, transformedKey, version)
	}
	return loadV3(r, outer, ck, transformedKey, version)
}

func resolveKDF(outer *OuterHeader, isV4 bool) (kdf.KDF, error) {
	if !isV4 {
		return kdf.NewAESKDF3(outer.TransformSeed, outer.TransformRounds), nil
	}
	if outer.KdfParameters == nil {
		return nil, errs.New(errs.KindMalformed, "kdbx: v4 header missing KDF parameters")
	}
	return kdf.FromVariantMap(outer.KdfParameters)
}

func loadV3(r io.Reader, outer *OuterHeader, ck *compositekey.CompositeKey, transformedKey []byte, version model.FormatVersion) (*Container, error) {
	challengeKey, err := ck.Challenge(outer.MasterSeed)
	if err != nil {
		return nil, err
	}
	finalKey := sha256.New()
	finalKey.Write(outer.MasterSeed)
	finalKey.Write(challengeKey)
	finalKey.Write(transformedKey)
	key := finalKey.Sum(nil)
	defer secmem.Zero(key)

	blockSize, err := cipher.BlockSize(outer.CipherID)
	if err != nil {
		return nil, err
	}
	plain, err := decryptCBC(outer.CipherID, key, outer.EncryptionIV, r, blockSize, errs.KindAuthentication)
	if err != nil {
		return nil, err
	}

	if len(plain) < len(outer.StreamStartBytes) || !bytes.Equal(plain[:len(outer.StreamStartBytes)], outer.StreamStartBytes) {
		return nil, errs.New(errs.KindAuthentication, "kdbx: stream start bytes mismatch (wrong password or corrupt file)")
	}
	plain = plain[len(outer.StreamStartBytes):]

	blockReader := stream.NewHashedBlockReader(bytes.NewReader(plain))
	decompressed, err := decompress(blockReader, outer.Compression)
	if err != nil {
		return nil, err
	}

	return &Container{
		Version:        version,
		Outer:          outer,
		TransformedKey: transformedKey,
		XML:            decompressed,
	}, nil
}

func loadV4(r io.Reader, outer *OuterHeader, rawHeader []byte, ck *compositekey.CompositeKey, transformedKey []byte, version model.FormatVersion) (*Container, error) {
	var wantSHA [32]byte
	if _, err := io.ReadFull(r, wantSHA[:]); err != nil {
		return nil, errs.Wrap(errs.KindMalformed, err, "kdbx: read header sha256")
	}
	gotSHA := sha256.Sum256(rawHeader)
	if gotSHA != wantSHA {
		// Header tamper is reported the same way as a wrong key so the
		// two stay indistinguishable to callers.
		return nil, errs.New(errs.KindAuthentication, "kdbx: header SHA-256 mismatch (invalid credentials or corrupt file)")
	}

	finalKeyHash := sha256.New()
	finalKeyHash.Write(outer.MasterSeed)
	finalKeyHash.Write(transformedKey)
	finalKey := finalKeyHash.Sum(nil)
	defer secmem.Zero(finalKey)

	blockKeys := stream.NewHmacBlockKeys(outer.MasterSeed, transformedKey)

	var wantHMAC [32]byte
	if _, err := io.ReadFull(r, wantHMAC[:]); err != nil {
		return nil, errs.Wrap(errs.KindAuthentication, err, "kdbx: read header hmac")
	}
	gotHMAC := blockKeys.HmacHeader(rawHeader)
	if !bytes.Equal(gotHMAC, wantHMAC[:]) {
		return nil, errs.New(errs.KindAuthentication, "kdbx: header HMAC mismatch (wrong password or corrupt file)")
	}

	hmacReader := stream.NewHmacBlockReader(r, blockKeys)

	blockSize, err := cipher.BlockSize(outer.CipherID)
	var plain []byte
	if err == nil {
		plain, err = decryptCBC(outer.CipherID, finalKey, outer.EncryptionIV, hmacReader, blockSize, errs.KindIntegrity)
	} else {
		plain, err = decryptStreamCipher(outer.CipherID, finalKey, outer.EncryptionIV, hmacReader)
	}
	if err != nil {
		return nil, err
	}

	decompressed, err := decompress(bytes.NewReader(plain), outer.Compression)
	if err != nil {
		return nil, err
	}

	bodyReader := bytes.NewReader(decompressed)
	inner, err := ReadInnerHeader(bodyReader)
	if err != nil {
		return nil, err
	}
	xmlBytes, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "kdbx: read xml payload")
	}

	return &Container{
		Version:        version,
		Outer:          outer,
		Inner:          inner,
		TransformedKey: transformedKey,
		XML:            xmlBytes,
	}, nil
}

func decryptCBC(id uuid.UUID, key, iv []byte, r io.Reader, blockSize int, padErrKind errs.Kind) ([]byte, error) {
	ciphertext, err := readAllClassified(r)
	if err != nil {
		return nil, err
	}
	dec, err := cipher.NewCBCDecrypter(id, key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%blockSize != 0 {
		return nil, errs.New(errs.KindMalformed, "kdbx: ciphertext length %d is not a multiple of block size %d", len(ciphertext), blockSize)
	}
	plain := make([]byte, len(ciphertext))
	dec.CryptBlocks(plain, ciphertext)
	unpadded, err := cipher.UnpadPKCS7(plain, blockSize)
	if err != nil {
		return nil, errs.Wrap(padErrKind, err, "kdbx: invalid padding (invalid credentials or corrupt file)")
	}
	return unpadded, nil
}

func decryptStreamCipher(id uuid.UUID, key, iv []byte, r io.Reader) ([]byte, error) {
	ciphertext, err := readAllClassified(r)
	if err != nil {
		return nil, err
	}
	s, err := cipher.NewStream(id, key, iv)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	s.XORKeyStream(plain, ciphertext)
	return plain, nil
}

func decompress(r io.Reader, compression model.Compression) ([]byte, error) {
	if compression == model.CompressionGzip {
		gz, err := stream.NewGzipReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		data, err := io.ReadAll(gz)
		if err != nil {
			if _, ok := errs.KindOf(err); ok {
				return nil, err
			}
			return nil, errs.Wrap(errs.KindMalformed, err, "kdbx: gunzip")
		}
		return data, nil
	}
	return readAllClassified(r)
}

// readAllClassified drains r, keeping any error kind a lower stream
// layer (block framing, gzip) already assigned instead of blanketing
// it as an I/O failure.
func readAllClassified(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		if _, ok := errs.KindOf(err); ok {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindIO, err, "kdbx: read stream")
	}
	return data, nil
}
