// Package firmware loads firmware update images and programs them into a
// device through its boot code.
//
// An image is a .syx file: a sequence of firmware update SysEx frames,
// each one a block for WriteFirmwareUpdateMsg. Binary dumps and hex text
// dumps are both accepted.
//
// Programming follows the usual boot code sequence:
//
//  1. Enter boot code
//  2. Read the bank table
//  3. Write every block, retrying rejected or lost blocks
//  4. Activate the target bank (optional)
//  5. Exit boot code and read back the application identity
//
// Example:
//
//	img, err := firmware.Load("update.syx")
//	if err != nil {
//	    return err
//	}
//	up := firmware.NewUpdater(session,
//	    firmware.WithProgressCallback(func(p firmware.Progress) {
//	        fmt.Printf("[%s] %.0f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//	result, err := up.Program(ctx, img)
package firmware
