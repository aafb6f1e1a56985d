package kdbx

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/google/uuid"

	"github.com/kdbxgo/kdbxvault/cipher"
	"github.com/kdbxgo/kdbxvault/compositekey"
	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/kdf"
	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/secmem"
	"github.com/kdbxgo/kdbxvault/stream"
)

// SaveParams is everything Save needs beyond the XML payload bytes.
type SaveParams struct {
	Version     model.FormatVersion
	CipherID    uuid.UUID
	Compression model.Compression
	KDF         kdf.KDF

	InnerStreamID          stream.InnerStreamID
	PreviousInnerStreamKey []byte   // reused on re-save if non-nil; otherwise a fresh one is generated
	Binaries               []Binary // v4 only

	CompositeKey *compositekey.CompositeKey
}

// Save writes a complete KDBX container to w: fresh masterSeed/IV/
// protectedStreamKey (or reused InnerStreamKey), the KDF transform,
// header, header integrity fields, and the cipher/block-stream/gzip
// pipeline wrapping xmlPayload.
func Save(w io.Writer, p SaveParams, xmlPayload []byte) error {
	masterSeed := randomBytes(32)
	ivSize, err := cipher.IVSize(p.CipherID)
	if err != nil {
		return err
	}
	iv := randomBytes(ivSize)

	innerStreamKey := p.PreviousInnerStreamKey
	if innerStreamKey == nil {
		innerStreamKey = randomBytes(64)
	}

	transformedKey, err := p.CompositeKey.Transform(p.KDF)
	if err != nil {
		return err
	}

	if err := WriteMagic(w, p.Version); err != nil {
		return err
	}

	isV4 := p.Version.IsV4()
	outer := &OuterHeader{
		CipherID:    p.CipherID,
		Compression: p.Compression,
		MasterSeed:  masterSeed,
	}
	if isV4 {
		outer.EncryptionIV = iv
		outer.KdfParameters = kdf.ToVariantMap(p.KDF.Params())
	} else {
		kdfParams := p.KDF.Params()
		outer.TransformSeed = kdfParams.Seed
		outer.TransformRounds = kdfParams.Rounds
		outer.EncryptionIV = iv
		outer.ProtectedStreamKey = innerStreamKey
		outer.StreamStartBytes = randomBytes(32)
		outer.InnerRandomStreamID = uint32(p.InnerStreamID)
	}

	rawHeader, err := WriteOuterHeader(w, outer, isV4)
	if err != nil {
		return err
	}

	if isV4 {
		return saveV4(w, outer, rawHeader, masterSeed, transformedKey, p, xmlPayload, innerStreamKey)
	}
	return saveV3(w, outer, masterSeed, transformedKey, p, xmlPayload)
}

// SaveV3WithHeaderHash writes a v3 container exactly as Save does, but
// serializes the outer header first so buildXML can embed its SHA-256
// into the XML <HeaderHash> element before the body is framed. Plain Save
// cannot support this because it is handed a fully-encoded xmlPayload
// before it generates the header's random fields.
func SaveV3WithHeaderHash(w io.Writer, p SaveParams, buildXML func(headerHash []byte) ([]byte, error)) error {
	masterSeed := randomBytes(32)
	ivSize, err := cipher.IVSize(p.CipherID)
	if err != nil {
		return err
	}
	iv := randomBytes(ivSize)

	innerStreamKey := p.PreviousInnerStreamKey
	if innerStreamKey == nil {
		innerStreamKey = randomBytes(64)
	}

	kdfParams := p.KDF.Params()
	outer := &OuterHeader{
		CipherID:            p.CipherID,
		Compression:         p.Compression,
		MasterSeed:          masterSeed,
		TransformSeed:       kdfParams.Seed,
		TransformRounds:     kdfParams.Rounds,
		EncryptionIV:        iv,
		ProtectedStreamKey:  innerStreamKey,
		StreamStartBytes:    randomBytes(32),
		InnerRandomStreamID: uint32(p.InnerStreamID),
	}

	var headerBuf bytes.Buffer
	rawHeader, err := WriteOuterHeader(&headerBuf, outer, false)
	if err != nil {
		return err
	}
	headerHash := sha256.Sum256(rawHeader)

	xmlPayload, err := buildXML(headerHash[:])
	if err != nil {
		return err
	}

	transformedKey, err := p.CompositeKey.Transform(p.KDF)
	if err != nil {
		return err
	}

	if err := WriteMagic(w, p.Version); err != nil {
		return err
	}
	if _, err := w.Write(headerBuf.Bytes()); err != nil {
		return errs.Wrap(errs.KindIO, err, "kdbx: write header")
	}

	return saveV3(w, outer, masterSeed, transformedKey, p, xmlPayload)
}

func saveV3(w io.Writer, outer *OuterHeader, masterSeed, transformedKey []byte, p SaveParams, xmlPayload []byte) error {
	challengeKey, err := p.CompositeKey.Challenge(masterSeed)
	if err != nil {
		return err
	}
	finalKeyHash := sha256.New()
	finalKeyHash.Write(masterSeed)
	finalKeyHash.Write(challengeKey)
	finalKeyHash.Write(transformedKey)
	finalKey := finalKeyHash.Sum(nil)
	defer secmem.Zero(finalKey)

	var body bytes.Buffer
	blockWriter := stream.NewHashedBlockWriter(&body)
	compressed, err := compressIfNeeded(xmlPayload, p.Compression)
	if err != nil {
		return err
	}
	if _, err := blockWriter.Write(compressed); err != nil {
		return err
	}
	if err := blockWriter.Close(); err != nil {
		return err
	}

	plain := append(append([]byte(nil), outer.StreamStartBytes...), body.Bytes()...)
	return encryptCBC(w, p.CipherID, finalKey, outer.EncryptionIV, plain)
}

func saveV4(w io.Writer, outer *OuterHeader, rawHeader []byte, masterSeed, transformedKey []byte, p SaveParams, xmlPayload []byte, innerStreamKey []byte) error {
	headerSHA := sha256.Sum256(rawHeader)
	if _, err := w.Write(headerSHA[:]); err != nil {
		return errs.Wrap(errs.KindIO, err, "kdbx: write header sha256")
	}

	blockKeys := stream.NewHmacBlockKeys(masterSeed, transformedKey)
	headerMAC := blockKeys.HmacHeader(rawHeader)
	if _, err := w.Write(headerMAC); err != nil {
		return errs.Wrap(errs.KindIO, err, "kdbx: write header hmac")
	}

	finalKeyHash := sha256.New()
	finalKeyHash.Write(masterSeed)
	finalKeyHash.Write(transformedKey)
	finalKey := finalKeyHash.Sum(nil)
	defer secmem.Zero(finalKey)

	var inner bytes.Buffer
	if err := WriteInnerHeader(&inner, &InnerHeader{
		InnerRandomStreamID:  p.InnerStreamID,
		InnerRandomStreamKey: innerStreamKey,
		Binaries:             p.Binaries,
	}); err != nil {
		return err
	}
	inner.Write(xmlPayload)

	compressed, err := compressIfNeeded(inner.Bytes(), p.Compression)
	if err != nil {
		return err
	}

	var cipherBuf bytes.Buffer
	if err := encryptCBC(&cipherBuf, p.CipherID, finalKey, outer.EncryptionIV, compressed); err != nil {
		return err
	}

	hmacWriter := stream.NewHmacBlockWriter(w, blockKeys)
	if _, err := hmacWriter.Write(cipherBuf.Bytes()); err != nil {
		return err
	}
	return hmacWriter.Close()
}

func compressIfNeeded(data []byte, compression model.Compression) ([]byte, error) {
	if compression != model.CompressionGzip {
		return data, nil
	}
	var buf bytes.Buffer
	gz := stream.NewGzipWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "kdbx: gzip write")
	}
	if err := gz.Close(); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "kdbx: gzip close")
	}
	return buf.Bytes(), nil
}

func encryptCBC(w io.Writer, id uuid.UUID, key, iv, plain []byte) error {
	blockSize, err := cipher.BlockSize(id)
	if err != nil {
		return encryptStreamCipher(w, id, key, iv, plain)
	}
	enc, err := cipher.NewCBCEncrypter(id, key, iv)
	if err != nil {
		return err
	}
	padded := cipher.PadPKCS7(plain, blockSize)
	out := make([]byte, len(padded))
	enc.CryptBlocks(out, padded)
	if _, err := w.Write(out); err != nil {
		return errs.Wrap(errs.KindIO, err, "kdbx: write ciphertext")
	}
	return nil
}

func encryptStreamCipher(w io.Writer, id uuid.UUID, key, iv, plain []byte) error {
	s, err := cipher.NewStream(id, key, iv)
	if err != nil {
		return err
	}
	out := make([]byte, len(plain))
	s.XORKeyStream(out, plain)
	if _, err := w.Write(out); err != nil {
		return errs.Wrap(errs.KindIO, err, "kdbx: write ciphertext")
	}
	return nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("kdbx: system CSPRNG unavailable: " + err.Error())
	}
	return b
}
