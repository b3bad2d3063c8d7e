package rawzip

// Creator identifies the "version made by" upper byte: the system that
// produced the central directory record, which governs how
// external_file_attrs is interpreted.
type Creator uint8

const (
	CreatorFAT   Creator = 0
	CreatorUnix  Creator = 3
	CreatorNTFS  Creator = 11
	CreatorVFAT  Creator = 14
	CreatorMacOS Creator = 19
)

const (
	modeIFDIR = 0o040000
	modeIFREG = 0o100000

	msdosDirAttr      = 0x10
	msdosReadOnlyAttr = 0x01
)

// EntryMode translates a central directory record's "version made by"
// creator byte and external_file_attrs into a Unix-style mode:
//
//   - Unix/macOS creators: the upper 16 bits of external_file_attrs are
//     already a Unix mode_t, used verbatim.
//   - NTFS/VFAT/FAT creators: the MS-DOS attribute nibble maps to
//     S_IFDIR|0777 for directories, S_IFREG|0444 for read-only files, or
//     S_IFREG|0666 otherwise.
//   - Any other creator defaults to 0644.
//
// If name ends in "/", S_IFDIR is OR'd in regardless of creator, so a
// directory entry is never misreported as a regular file.
func EntryMode(creator Creator, externalAttrs uint32, name string) uint32 {
	var mode uint32

	switch creator {
	case CreatorUnix, CreatorMacOS:
		mode = externalAttrs >> 16
	case CreatorNTFS, CreatorVFAT, CreatorFAT:
		if externalAttrs&msdosDirAttr != 0 {
			mode = modeIFDIR | 0o777
		} else if externalAttrs&msdosReadOnlyAttr != 0 {
			mode = modeIFREG | 0o444
		} else {
			mode = modeIFREG | 0o666
		}
	default:
		mode = 0o644
	}

	if len(name) > 0 && name[len(name)-1] == '/' {
		mode |= modeIFDIR
	}

	return mode
}

// unixPermissionsToExternalAttrs packs a Unix mode (e.g. 0755, optionally
// with S_IFDIR/S_IFREG bits) into external_file_attrs the way the writer
// stores it: mode shifted into the upper 16 bits, plus the best-effort
// MS-DOS mirror bits (directory / read-only) that real encoders also set
// for compatibility with readers that only understand the legacy
// attributes (grounded in zipserve's FileHeader.SetMode).
func unixPermissionsToExternalAttrs(mode uint32, isDir bool) uint32 {
	attrs := mode << 16
	if isDir {
		attrs |= msdosDirAttr
	}
	if mode&0o200 == 0 {
		attrs |= msdosReadOnlyAttr
	}
	return attrs
}
