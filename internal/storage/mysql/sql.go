package mysql

// -----------------------------------------------------------------------------
// WRITE QUERIES
// -----------------------------------------------------------------------------

const deletePendingForSQL = `
DELETE FROM bookings
WHERE profile_id = ? AND payment_status = 'pending'
`

const insertPendingSQL = `
INSERT INTO bookings
  (id, property_id, profile_id, check_in, check_out, total_nights, order_total, payment_status, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, 'pending', ?)
`

const markPaidSQL = `
UPDATE bookings SET payment_status = 'paid'
WHERE id = ? AND payment_status = 'pending'
`

const deleteForProfileSQL = `
DELETE FROM bookings WHERE id = ? AND profile_id = ?
`

const upsertProfileSQL = `
INSERT INTO profiles (id, external_id, username, role)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  username = VALUES(username),
  role     = VALUES(role)
`

const upsertPropertySQL = `
INSERT INTO properties
  (id, profile_id, name, country, price, beds, baths, guests)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name    = VALUES(name),
  country = VALUES(country),
  price   = VALUES(price),
  beds    = VALUES(beds),
  baths   = VALUES(baths),
  guests  = VALUES(guests)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const lockPropertySQL = `SELECT id FROM properties WHERE id = ? FOR UPDATE`

const getBookingForUpdateSQL = `
SELECT id, property_id, profile_id, check_in, check_out, total_nights, order_total, payment_status, created_at
FROM bookings
WHERE id = ?
FOR UPDATE
`

const ownedBookingSQL = `
SELECT property_id FROM bookings WHERE id = ? AND profile_id = ? FOR UPDATE
`

// Only paid bookings block dates; holds are never returned.
const listConfirmedRangesSQL = `
SELECT check_in, check_out
FROM bookings
WHERE property_id = ? AND payment_status = 'paid' AND id <> ?
ORDER BY check_in
`

// Locking read for the payment re-check: it always sees the latest committed
// paid rows, whatever else the transaction has read before.
const lockedConfirmedRangesSQL = `
SELECT check_in, check_out
FROM bookings
WHERE property_id = ? AND payment_status = 'paid' AND id <> ?
ORDER BY check_in
FOR SHARE
`

const listConfirmedSQL = `
SELECT id, property_id, profile_id, check_in, check_out, total_nights, order_total, payment_status, created_at
FROM bookings
WHERE payment_status = 'paid'
ORDER BY created_at, id
`

const listForProfileSQL = `
SELECT b.id, b.property_id, p.name, p.country, b.check_in, b.check_out,
       b.total_nights, b.order_total, b.payment_status, b.created_at
FROM bookings b
JOIN properties p ON p.id = b.property_id
WHERE b.profile_id = ?
ORDER BY b.check_in DESC, b.id
`

const nightlyPriceSQL = `SELECT price FROM properties WHERE id = ?`

const profileByExternalIDSQL = `
SELECT id, external_id, username, role FROM profiles WHERE external_id = ?
`

// Sums cover paid bookings only; LEFT JOIN keeps properties with none.
const listRentalsSQL = `
SELECT p.id, p.name, p.price,
       COALESCE(SUM(b.total_nights), 0),
       COALESCE(SUM(b.order_total), 0)
FROM properties p
LEFT JOIN bookings b ON b.property_id = p.id AND b.payment_status = 'paid'
WHERE p.profile_id = ?
GROUP BY p.id, p.name, p.price
ORDER BY p.name, p.id
`

const propertyOwnerSQL = `SELECT profile_id FROM properties WHERE id = ?`

// -----------------------------------------------------------------------------
// REVIEWS & FAVORITES
// -----------------------------------------------------------------------------

const insertReviewSQL = `
INSERT INTO reviews (id, property_id, profile_id, rating, comment, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const hasReviewSQL = `
SELECT EXISTS(SELECT 1 FROM reviews WHERE profile_id = ? AND property_id = ?)
`

const listPropertyReviewsSQL = `
SELECT r.id, r.property_id, p.name, pr.username, r.rating, r.comment, r.created_at
FROM reviews r
JOIN properties p ON p.id = r.property_id
JOIN profiles pr ON pr.id = r.profile_id
WHERE r.property_id = ?
ORDER BY r.created_at DESC, r.id
`

const listProfileReviewsSQL = `
SELECT r.id, r.property_id, p.name, pr.username, r.rating, r.comment, r.created_at
FROM reviews r
JOIN properties p ON p.id = r.property_id
JOIN profiles pr ON pr.id = r.profile_id
WHERE r.profile_id = ?
ORDER BY r.created_at DESC, r.id
`

const ownedReviewSQL = `
SELECT property_id FROM reviews WHERE id = ? AND profile_id = ? FOR UPDATE
`

const deleteReviewSQL = `DELETE FROM reviews WHERE id = ? AND profile_id = ?`

const ratingTotalsSQL = `
SELECT COALESCE(SUM(rating), 0), COUNT(*) FROM reviews WHERE property_id = ?
`

const findFavoriteForUpdateSQL = `
SELECT id FROM favorites WHERE profile_id = ? AND property_id = ? FOR UPDATE
`

const insertFavoriteSQL = `
INSERT INTO favorites (id, property_id, profile_id) VALUES (?, ?, ?)
`

const deleteFavoriteSQL = `DELETE FROM favorites WHERE id = ?`

const isFavoriteSQL = `
SELECT EXISTS(SELECT 1 FROM favorites WHERE profile_id = ? AND property_id = ?)
`

const listFavoritesSQL = `
SELECT p.id, p.name, p.country, p.price
FROM favorites f
JOIN properties p ON p.id = f.property_id
WHERE f.profile_id = ?
ORDER BY f.created_at DESC, p.id
`
