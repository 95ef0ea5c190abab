package urls

// Documentation lives at https://dcontrol.github.io/midiboot/

// GettingStarted covers cabling and the first identify run.
const GettingStarted = "https://dcontrol.github.io/midiboot/getting-started/"

// BlindMode explains which USB-MIDI interfaces cut SysEx messages and how
// --blind works around them.
const BlindMode = "https://dcontrol.github.io/midiboot/guides/blind-mode/"

// FirmwareUpdate walks through a full flash, including recovery after an
// interrupted update.
const FirmwareUpdate = "https://dcontrol.github.io/midiboot/guides/firmware-update/"

// Bridge describes running midiboot-bridge next to the device.
const Bridge = "https://dcontrol.github.io/midiboot/guides/bridge/"

// TroubleshootingGuide collects fixes for timeouts and garbled replies.
const TroubleshootingGuide = "https://dcontrol.github.io/midiboot/troubleshooting/"

// UnknownDevice explains how to add a product to the device catalog.
const UnknownDevice = "https://dcontrol.github.io/midiboot/contributing/devices/"
